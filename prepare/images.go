package prepare

import (
	"fmt"

	"github.com/gogpu/shadergraph/scene"
	"github.com/gogpu/shadergraph/schema"
)

// imageKeys identify an image source, in lookup order.
var imageKeys = []string{"assetId", "dataUrl", "path"}

// InlineImageFiles copies the identifying parameters of image-source nodes
// into the consumers wired to their "image" port. Each key is copied only
// when the consumer has no value for it. It returns the number of
// consumers updated.
func InlineImageFiles(s *scene.Scene, sch *schema.Schema) (int, error) {
	nodes := s.Index()
	count := 0
	for _, c := range s.Connections {
		if c.To.PortID != "image" {
			continue
		}
		dst, ok := nodes[c.To.NodeID]
		if !ok {
			continue
		}
		src, ok := nodes[c.From.NodeID]
		if !ok {
			return count, &RewriteError{Pass: "images", NodeID: dst.ID, Err: fmt.Errorf("image source %q is missing", c.From.NodeID)}
		}
		if sch.Category(src.Type) != schema.CategoryImage {
			return count, &RewriteError{Pass: "images", NodeID: dst.ID, Err: fmt.Errorf("node %q of type %s is not an image source", src.ID, src.Type)}
		}
		changed := false
		for _, key := range imageKeys {
			v, ok := src.String(key)
			if !ok || v == "" {
				continue
			}
			if cur, ok := dst.String(key); ok && cur != "" {
				continue
			}
			dst.SetParam(key, v)
			changed = true
		}
		if changed {
			count++
		}
	}
	return count, nil
}

// ImageSource returns the first non-empty identifying parameter of an
// image node and its key.
func ImageSource(n *scene.Node) (key, value string) {
	for _, k := range imageKeys {
		if v, ok := n.String(k); ok && v != "" {
			return k, v
		}
	}
	return "", ""
}
