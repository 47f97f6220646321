package runner_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"toden-backend/internal/core"
	"toden-backend/internal/predictor"
	"toden-backend/internal/runner"
	"toden-backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPredictor struct {
	inputs   []predictor.PredictInput
	result   json.RawMessage
	err      error
	released bool
}

func (s *stubPredictor) Predict(ctx context.Context, input predictor.PredictInput) (json.RawMessage, error) {
	s.inputs = append(s.inputs, input)
	return s.result, s.err
}

func (s *stubPredictor) Summarize(ctx context.Context, path string) (json.RawMessage, error) {
	return nil, errors.New("not supported")
}

func (s *stubPredictor) Release() {
	s.released = true
}

func newRunner(t *testing.T, p *stubPredictor) (*runner.Runner, *bytes.Buffer, *storage.LocalObjectStore) {
	store, err := storage.NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)

	var out bytes.Buffer
	return &runner.Runner{
		LoadPredictor: func() (predictor.Predictor, error) { return p, nil },
		LoadStore:     func(ctx context.Context) (storage.ObjectStore, error) { return store, nil },
		Out:           &out,
	}, &out, store
}

func TestRunLocal(t *testing.T) {
	p := &stubPredictor{result: json.RawMessage(`{"clusters":[["g1"]]}`)}
	r, out, _ := newRunner(t, p)

	require.NoError(t, r.RunLocal(context.Background(), []string{"in.txt", "0.5", "3", "abc", "/tmp/base"}))
	assert.JSONEq(t, `{"result":{"clusters":[["g1"]]}}`, out.String())
	assert.Equal(t, 1, bytes.Count(out.Bytes(), []byte("\n")))

	assert.Equal(t, []predictor.PredictInput{{
		InputPath: "in.txt", Alpha: 0.5, NumClusters: 3, ResultId: "abc", BaseTmpPath: "/tmp/base",
	}}, p.inputs)
	assert.True(t, p.released)
}

func TestRunLocal_Errors(t *testing.T) {
	cases := []struct {
		name    string
		args    []string
		predErr error
		errType string
		message string
	}{
		{
			name:    "ArgumentCount",
			args:    []string{"in.txt", "0.5", "3", "abc"},
			errType: "ArgumentError",
			message: "Incorrect number of arguments. Expected 5 (pags_txt_path, alpha, clusters, result_id, base_tmp_path), got 4.",
		},
		{
			name:    "InvalidAlpha",
			args:    []string{"in.txt", "abc", "3", "abc", "/tmp"},
			errType: "ParseError",
		},
		{
			name:    "LibraryError",
			args:    []string{"in.txt", "0.5", "3", "abc", "/tmp"},
			predErr: core.TypedErrorf(core.ExternalLibraryError, "KeyError", "'GO:1'"),
			errType: "KeyError",
			message: "'GO:1'",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r, out, _ := newRunner(t, &stubPredictor{err: c.predErr})

			err := r.RunLocal(context.Background(), c.args)
			require.Error(t, err)
			assert.Equal(t, 1, core.ExitCode(err))

			var res map[string]string
			require.NoError(t, json.Unmarshal(out.Bytes(), &res))
			assert.Equal(t, c.errType, res["type"])
			if c.message != "" {
				assert.Equal(t, c.message, res["error"])
			}
		})
	}
}

func TestRunLocal_LoadFailure(t *testing.T) {
	var out bytes.Buffer
	r := &runner.Runner{
		LoadPredictor: func() (predictor.Predictor, error) { return nil, errors.New("exec: python3 not found") },
		Out:           &out,
	}

	err := r.RunLocal(context.Background(), []string{"in.txt", "0.5", "3", "abc", "/tmp"})
	require.Error(t, err)
	assert.Contains(t, out.String(), `"type":"ImportError"`)
}

func TestRunBlob_OverwritesSamePaths(t *testing.T) {
	p := &stubPredictor{result: json.RawMessage(`{"adj_matrix_csv":"1,0","con_matrix_csv":"0,1","clusters_csv":"ID,0\nAlgoX,g1"}`)}
	r, out, store := newRunner(t, p)
	ctx := context.Background()

	require.NoError(t, r.RunBlob(ctx, []string{"in.txt", "0.5", "3", "abc"}))
	assert.JSONEq(t, `{"success":true}`, out.String())
	assert.True(t, p.inputs[0].InMemory)

	first, err := store.ListObjects(ctx, "predictions/abc/")
	require.NoError(t, err)

	out.Reset()
	require.NoError(t, r.RunBlob(ctx, []string{"in.txt", "0.5", "3", "abc"}))

	second, err := store.ListObjects(ctx, "predictions/abc/")
	require.NoError(t, err)

	names := func(objs []storage.Object) []string {
		var out []string
		for _, o := range objs {
			out = append(out, o.Name)
		}
		return out
	}
	assert.Equal(t, []string{
		"predictions/abc/adj_matrix.csv",
		"predictions/abc/clusters.csv",
		"predictions/abc/con_matrix.csv",
	}, names(first))
	assert.Equal(t, names(first), names(second))
}

func TestRunBlob_Errors(t *testing.T) {
	r, out, _ := newRunner(t, &stubPredictor{err: core.TypedErrorf(core.ExternalLibraryError, "ValueError", "bad alpha")})

	err := r.RunBlob(context.Background(), []string{"in.txt", "0.5", "3", "abc"})
	require.Error(t, err)
	assert.JSONEq(t, `{"success":false,"error":"bad alpha","type":"ValueError"}`, out.String())

	out.Reset()
	err = r.RunBlob(context.Background(), []string{"in.txt", "0.5"})
	require.Error(t, err)
	assert.Contains(t, out.String(), `"type":"ArgumentError"`)

	out.Reset()
	r.LoadStore = func(ctx context.Context) (storage.ObjectStore, error) { return nil, errors.New("BLOB_READ_WRITE_TOKEN not set") }
	err = r.RunBlob(context.Background(), []string{"in.txt", "0.5", "3", "abc"})
	require.Error(t, err)
	assert.Contains(t, out.String(), `"type":"UploadError"`)
}

func noSetup() error { return nil }

func TestCommand_NegativeAlpha(t *testing.T) {
	p := &stubPredictor{result: json.RawMessage(`{"clusters":[]}`)}
	r, out, _ := newRunner(t, p)

	root := runner.NewCommand(r, noSetup)
	root.SetArgs([]string{"local", "in.txt", "-0.5", "3", "abc", "/tmp/base"})
	require.NoError(t, root.Execute())

	assert.JSONEq(t, `{"result":{"clusters":[]}}`, out.String())
	require.Len(t, p.inputs, 1)
	assert.Equal(t, -0.5, p.inputs[0].Alpha)

	out.Reset()
	root = runner.NewCommand(r, noSetup)
	root.SetArgs([]string{"blob", "in.txt", "-1", "3", "abc"})
	require.NoError(t, root.Execute())
	assert.JSONEq(t, `{"success":true}`, out.String())
}

func TestCommand_FlagErrors(t *testing.T) {
	r, out, _ := newRunner(t, &stubPredictor{})

	root := runner.NewCommand(r, noSetup)
	root.SetArgs([]string{"local", "--bogus", "in.txt", "0.5", "3", "abc", "/tmp"})
	err := root.Execute()
	require.Error(t, err)
	assert.Equal(t, 1, core.ExitCode(err))
	assert.JSONEq(t, `{"error":"unknown flag: --bogus","type":"ArgumentError"}`, out.String())

	out.Reset()
	root = runner.NewCommand(r, noSetup)
	root.SetArgs([]string{"blob", "--bogus", "in.txt", "0.5", "3", "abc"})
	require.Error(t, root.Execute())
	assert.JSONEq(t, `{"success":false,"error":"unknown flag: --bogus","type":"ArgumentError"}`, out.String())
}

func TestCommand_ConfigError(t *testing.T) {
	r, out, _ := newRunner(t, &stubPredictor{})
	failingSetup := func() error { return errors.New(`env: required environment variable "X" is not set`) }

	root := runner.NewCommand(r, failingSetup)
	root.SetArgs([]string{"local", "in.txt", "0.5", "3", "abc", "/tmp"})
	require.Error(t, root.Execute())
	assert.JSONEq(t, `{"error":"env: required environment variable \"X\" is not set","type":"ConfigError"}`, out.String())

	out.Reset()
	root = runner.NewCommand(r, failingSetup)
	root.SetArgs([]string{"blob", "in.txt", "0.5", "3", "abc"})
	require.Error(t, root.Execute())
	assert.JSONEq(t, `{"success":false,"error":"env: required environment variable \"X\" is not set","type":"ConfigError"}`, out.String())
}
