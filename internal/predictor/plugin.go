package predictor

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"
	"toden-backend/internal/core"
	"toden-backend/plugin/shared"

	"github.com/hashicorp/go-plugin"
)

const pluginName = "predictor_grpc"

// PluginPredictor calls toden-e through a go-plugin subprocess. Calls are
// serialized because the library keeps global state.
type PluginPredictor struct {
	mu     sync.Mutex
	client *plugin.Client
	impl   shared.Predictor
}

func LoadPluginPredictor(pythonExecutable, pluginScript string) (*PluginPredictor, error) {
	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig: shared.Handshake,
		Plugins:         shared.PluginMap,
		Cmd:             exec.Command(pythonExecutable, pluginScript),
		AllowedProtocols: []plugin.Protocol{
			plugin.ProtocolNetRPC, plugin.ProtocolGRPC},
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("error establishing plugin connection: %w", err)
	}

	raw, err := rpcClient.Dispense(pluginName)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("error dispensing '%s': %w", pluginName, err)
	}

	impl, ok := raw.(shared.Predictor)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("dispensed interface '%s' is not of expected type shared.Predictor (actual type: %T)", pluginName, raw)
	}

	return &PluginPredictor{client: client, impl: impl}, nil
}

// NewPluginPredictor wraps an already dispensed plugin.
func NewPluginPredictor(impl shared.Predictor) *PluginPredictor {
	return &PluginPredictor{impl: impl}
}

func (p *PluginPredictor) Predict(ctx context.Context, input PredictInput) (json.RawMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ready(ctx); err != nil {
		return nil, err
	}

	resp, err := p.impl.Predict(&shared.PredictRequest{
		PagsTxtPath: input.InputPath,
		Alpha:       input.Alpha,
		NumClusters: input.NumClusters,
		ResultId:    input.ResultId,
		BaseTmpPath: input.BaseTmpPath,
		InMemory:    input.InMemory,
	})
	return unwrapResponse(resp, err)
}

func (p *PluginPredictor) Summarize(ctx context.Context, clusteringResultsPath string) (json.RawMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ready(ctx); err != nil {
		return nil, err
	}

	resp, err := p.impl.Summarize(&shared.SummarizeRequest{ClusteringResultsPath: clusteringResultsPath})
	return unwrapResponse(resp, err)
}

func (p *PluginPredictor) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		p.client.Kill()
		p.client = nil
	}
	p.impl = nil
}

func (p *PluginPredictor) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.impl == nil {
		return core.TypedErrorf(core.ExternalLibraryError, "PluginError", "predictor plugin has been released")
	}
	return nil
}

func unwrapResponse(resp *shared.Response, err error) (json.RawMessage, error) {
	if err != nil {
		return nil, core.TypedErrorf(core.ExternalLibraryError, "PluginError", "error calling predictor plugin: %v", err)
	}
	if resp.Error != "" {
		return nil, libraryError(resp.Error, resp.ErrorType)
	}
	if len(resp.Result) == 0 {
		return json.RawMessage("null"), nil
	}
	return resp.Result, nil
}
