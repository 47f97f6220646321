package shared

import (
	"net/rpc"
)

// RPCClient is an implementation of Predictor that talks over net/rpc.
type RPCClient struct{ client *rpc.Client }

func (m *RPCClient) Predict(req *PredictRequest) (*Response, error) {
	var resp Response
	if err := m.client.Call("Plugin.Predict", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (m *RPCClient) Summarize(req *SummarizeRequest) (*Response, error) {
	var resp Response
	if err := m.client.Call("Plugin.Summarize", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Here is the RPC server that RPCClient talks to, conforming to
// the requirements of net/rpc
type RPCServer struct {
	Impl Predictor
}

func (m *RPCServer) Predict(req *PredictRequest, resp *Response) error {
	v, err := m.Impl.Predict(req)
	if err != nil {
		return err
	}
	*resp = *v
	return nil
}

func (m *RPCServer) Summarize(req *SummarizeRequest, resp *Response) error {
	v, err := m.Impl.Summarize(req)
	if err != nil {
		return err
	}
	*resp = *v
	return nil
}
