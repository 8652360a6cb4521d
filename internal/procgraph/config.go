package procgraph

import (
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/sctg-development/photoacoustic-go/internal/errors"
	"github.com/sctg-development/photoacoustic-go/internal/pastate"
)

// NodeFactory builds one ProcessingNode from its configured id and
// parameter blob. Computing and action node types live in other
// packages (internal/computing, internal/actions) and register
// themselves via RegisterNodeFactory in an init() func, avoiding an
// import cycle back into procgraph.
type NodeFactory func(id string, parameters map[string]any) (ProcessingNode, error)

var factories = struct {
	mu sync.RWMutex
	m  map[string]NodeFactory
}{m: make(map[string]NodeFactory)}

// RegisterNodeFactory makes nodeType buildable by FromConfig. Re-
// registering a nodeType overwrites the previous factory, which lets
// tests stub a node type without restarting the process.
func RegisterNodeFactory(nodeType string, factory NodeFactory) {
	factories.mu.Lock()
	defer factories.mu.Unlock()
	factories.m[nodeType] = factory
}

func lookupFactory(nodeType string) (NodeFactory, bool) {
	factories.mu.RLock()
	defer factories.mu.RUnlock()
	f, ok := factories.m[nodeType]
	return f, ok
}

func init() {
	RegisterNodeFactory("input", func(id string, _ map[string]any) (ProcessingNode, error) {
		return NewInputNode(id), nil
	})
	RegisterNodeFactory("channel_selector", func(id string, p map[string]any) (ProcessingNode, error) {
		target, err := channelTargetParam(p, "target")
		if err != nil {
			return nil, configErr(id, "channel_selector", err)
		}
		return NewChannelSelectorNode(id, target)
	})
	RegisterNodeFactory("channel_mixer", func(id string, p map[string]any) (ProcessingNode, error) {
		strategy, err := mixStrategyParam(p)
		if err != nil {
			return nil, configErr(id, "channel_mixer", err)
		}
		wa, _ := asFloat64(p["wa"])
		wb, _ := asFloat64(p["wb"])
		return NewChannelMixerNode(id, strategy, wa, wb), nil
	})
	RegisterNodeFactory("differential", func(id string, _ map[string]any) (ProcessingNode, error) {
		return NewDifferentialNode(id), nil
	})
	RegisterNodeFactory("gain", func(id string, p map[string]any) (ProcessingNode, error) {
		db, _ := asFloat64(p["gain_db"])
		return NewGainNode(id, db), nil
	})
	RegisterNodeFactory("filter", func(id string, p map[string]any) (ProcessingNode, error) {
		target, _ := channelTargetParam(p, "target_channel")
		kindStr, _ := p["kind"].(string)
		switch kindStr {
		case "lowpass":
			cutoff, _ := asFloat64(p["cutoff_hz"])
			return NewLowpassFilterNode(id, cutoff, target), nil
		case "highpass":
			cutoff, _ := asFloat64(p["cutoff_hz"])
			return NewHighpassFilterNode(id, cutoff, target), nil
		case "bandpass", "":
			center, _ := asFloat64(p["center_hz"])
			bandwidth, _ := asFloat64(p["bandwidth_hz"])
			return NewBandpassFilterNode(id, center, bandwidth, target), nil
		default:
			return nil, configErr(id, "filter", errors.NewStd("unknown filter kind "+kindStr))
		}
	})
	RegisterNodeFactory("photoacoustic_output", func(id string, p map[string]any) (ProcessingNode, error) {
		threshold, _ := asFloat64(p["detection_threshold"])
		window := 0
		if v, ok := asFloat64(p["window_size"]); ok {
			window = int(v)
		}
		return NewPhotoacousticOutputNode(id, threshold, window), nil
	})
}

func configErr(id, nodeType string, err error) error {
	return errors.New(err).
		Component("procgraph").
		Category(errors.CategoryConfiguration).
		NodeContext(id, nodeType).
		Build()
}

func channelTargetParam(p map[string]any, key string) (ChannelTarget, error) {
	raw, ok := p[key].(string)
	if !ok {
		return ChannelA, nil
	}
	switch raw {
	case "a", "A":
		return ChannelA, nil
	case "b", "B":
		return ChannelB, nil
	case "both", "Both":
		return ChannelBoth, nil
	default:
		return ChannelA, errors.NewStd("unknown channel target " + raw)
	}
}

func mixStrategyParam(p map[string]any) (MixStrategy, error) {
	raw, _ := p["strategy"].(string)
	switch raw {
	case "add", "":
		return MixAdd, nil
	case "subtract":
		return MixSubtract, nil
	case "average":
		return MixAverage, nil
	case "weighted":
		return MixWeighted, nil
	default:
		return MixAdd, errors.NewStd("unknown mix strategy " + raw)
	}
}

// NodeConfig is the declarative description of one node, as found in a
// graph document's nodes list.
type NodeConfig struct {
	ID         string         `yaml:"id"`
	NodeType   string         `yaml:"node_type"`
	Parameters map[string]any `yaml:"parameters"`
}

// ConnectionConfig is the declarative description of one directed edge.
type ConnectionConfig struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// GraphConfig is the declarative document shape a graph is built from:
// an id, a node list, a connection list, and an optional output node.
type GraphConfig struct {
	ID          string             `yaml:"id"`
	Nodes       []NodeConfig       `yaml:"nodes"`
	Connections []ConnectionConfig `yaml:"connections"`
	OutputNode  string             `yaml:"output_node"`
}

// FromConfig builds a Graph from its declarative description, wiring
// every node's shared state, validating the resulting topology before
// returning it.
func FromConfig(cfg GraphConfig, sharedState *pastate.State) (*Graph, error) {
	g := New(cfg.ID, sharedState)

	for _, nc := range cfg.Nodes {
		factory, ok := lookupFactory(nc.NodeType)
		if !ok {
			return nil, configErr(nc.ID, nc.NodeType, errors.NewStd("unknown node_type "+nc.NodeType))
		}
		node, err := factory(nc.ID, nc.Parameters)
		if err != nil {
			return nil, err
		}
		if err := g.AddNode(node); err != nil {
			return nil, err
		}
	}

	for _, cc := range cfg.Connections {
		if err := g.Connect(cc.From, cc.To); err != nil {
			return nil, err
		}
	}

	if cfg.OutputNode != "" {
		if err := g.SetOutput(cfg.OutputNode); err != nil {
			return nil, err
		}
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}

	return g, nil
}

// LoadConfigFile reads and parses a declarative graph configuration
// document from a YAML file at path.
func LoadConfigFile(path string) (GraphConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return GraphConfig{}, errors.New(err).
			Component("procgraph").
			Category(errors.CategoryValidation).
			Context("path", path).
			Build()
	}

	var cfg GraphConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return GraphConfig{}, errors.New(err).
			Component("procgraph").
			Category(errors.CategoryValidation).
			Context("path", path).
			Build()
	}

	return cfg, nil
}
