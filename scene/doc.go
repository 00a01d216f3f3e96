// Package scene defines the scene document: a node graph with typed ports,
// connections, named outputs, reusable groups and an asset manifest.
//
// Scenes arrive as JSON files, as zip archives bundling scene.json with
// its asset payloads, or as live-update messages carrying a full scene or
// a Delta. Parse rejects structural defects (duplicate ids, dangling
// connections); ParseUnchecked leaves them to the live cache, which prunes
// them instead.
//
// Builder constructs scenes in code, mostly for tests and tools.
package scene
