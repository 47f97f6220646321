package shared

import (
	"context"
	"encoding/json"
	"net/rpc"

	"github.com/hashicorp/go-plugin"
	"google.golang.org/grpc"
)

var Handshake = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "TODEN_E_PLUGIN",
	MagicCookieValue: "toden-e",
}

var PluginMap = map[string]plugin.Plugin{
	"predictor":      &PredictorPlugin{},
	"predictor_grpc": &PredictorGRPCPlugin{},
}

type PredictRequest struct {
	PagsTxtPath string  `json:"pags_txt_path"`
	Alpha       float64 `json:"alpha"`
	NumClusters int     `json:"num_clusters"`
	ResultId    string  `json:"result_id,omitempty"`
	BaseTmpPath string  `json:"base_tmp_path,omitempty"`
	// InMemory asks the plugin to return the csv outputs in the result
	// instead of writing them under BaseTmpPath.
	InMemory bool `json:"in_memory,omitempty"`
}

type SummarizeRequest struct {
	ClusteringResultsPath string `json:"clustering_results_path"`
}

// Response carries either a json result or the message and exception type
// raised by the library.
type Response struct {
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	ErrorType string          `json:"error_type,omitempty"`
}

// Predictor is the interface exposed by a toden-e plugin process.
type Predictor interface {
	Predict(req *PredictRequest) (*Response, error)
	Summarize(req *SummarizeRequest) (*Response, error)
}

type PredictorPlugin struct {
	Impl Predictor
}

func (p *PredictorPlugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &RPCServer{Impl: p.Impl}, nil
}

func (p *PredictorPlugin) Client(b *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &RPCClient{client: c}, nil
}

type PredictorGRPCPlugin struct {
	plugin.NetRPCUnsupportedPlugin
	Impl Predictor
}

func (p *PredictorGRPCPlugin) GRPCServer(broker *plugin.GRPCBroker, s *grpc.Server) error {
	s.RegisterService(&predictorServiceDesc, &GRPCServer{Impl: p.Impl})
	return nil
}

func (p *PredictorGRPCPlugin) GRPCClient(ctx context.Context, broker *plugin.GRPCBroker, c *grpc.ClientConn) (interface{}, error) {
	return &GRPCClient{conn: c}, nil
}
