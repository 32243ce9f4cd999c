package host

import (
	"io"
	"sync"

	"github.com/goccy/go-json"

	"github.com/RuiFG/streaming-trigger/engine"
	"github.com/RuiFG/streaming-trigger/log"
)

// Pane is the json form of an emitted pane.
type Pane struct {
	Key      string `json:"key"`
	Start    int64  `json:"start"`
	End      int64  `json:"end"`
	Timing   string `json:"timing"`
	Index    int64  `json:"index"`
	Elements int64  `json:"elements"`
	IsLast   bool   `json:"is_last"`
	Forced   bool   `json:"forced,omitempty"`
}

func NewPane(pane engine.PaneFiring) Pane {
	return Pane{
		Key:      pane.Key,
		Start:    pane.Window.Start(),
		End:      pane.Window.End(),
		Timing:   pane.Timing.String(),
		Index:    pane.Index,
		Elements: pane.Elements,
		IsLast:   pane.IsLast,
		Forced:   pane.Forced,
	}
}

type jsonCollector struct {
	mu      sync.Mutex
	logger  log.Logger
	encoder *json.Encoder
}

func (c *jsonCollector) EmitPane(pane engine.PaneFiring) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.encoder.Encode(NewPane(pane)); err != nil {
		c.logger.Errorw("failed to write pane", "key", pane.Key, "window", pane.Window.String(), "err", err)
	}
}

// NewJSONCollector writes every pane to writer as one json line.
func NewJSONCollector(writer io.Writer, logger log.Logger) engine.Collector {
	return &jsonCollector{logger: logger, encoder: json.NewEncoder(writer)}
}
