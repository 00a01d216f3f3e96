package prepare

import (
	"github.com/gogpu/shadergraph/scene"
	"github.com/gogpu/shadergraph/schema"
)

// WrapID returns the id of the pass node inserted for a connection.
func WrapID(c scene.Connection) string {
	return c.From.NodeID + "~wrap~" + c.To.NodeID + "." + c.To.PortID
}

// AutoWrap inserts a pass node wherever a pass-typed input receives a bare
// value. Texture outputs are wrapped in a Blit; every other value becomes
// the color of a RenderPass. It returns the number of passes inserted.
func AutoWrap(s *scene.Scene, sch *schema.Schema) (int, error) {
	nodes := s.Index()
	var added []scene.Node
	var extra []scene.Connection
	for i := range s.Connections {
		c := &s.Connections[i]
		from, okF := nodes[c.From.NodeID]
		to, okT := nodes[c.To.NodeID]
		if !okF || !okT {
			continue
		}
		if in, _ := sch.InputType(to, c.To.PortID); in != schema.TypePass {
			continue
		}
		out, _ := sch.OutputType(from, c.From.PortID)
		if out == schema.TypePass {
			continue
		}

		w := scene.Node{ID: WrapID(*c), Type: TypeRenderPass}
		port := "color"
		if out == schema.TypeTexture {
			w.Type, port = TypeBlit, "texture"
		}
		if err := sch.Normalize(&w); err != nil {
			return len(added), &RewriteError{Pass: "wrap", NodeID: c.To.NodeID, Err: err}
		}
		extra = append(extra, scene.Connection{
			ID:   c.ID + "~wrap",
			From: scene.Endpoint{NodeID: w.ID, PortID: "pass"},
			To:   c.To,
		})
		c.To = scene.Endpoint{NodeID: w.ID, PortID: port}
		added = append(added, w)
	}
	s.Nodes = append(s.Nodes, added...)
	s.Connections = append(s.Connections, extra...)
	return len(added), nil
}
