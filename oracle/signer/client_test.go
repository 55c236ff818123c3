package signer

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/suite"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/GPTx-global/rofl-oracle/oracle/types"
)

var contract = common.HexToAddress("0xf4630778eF83230A0081fb45b241Ff826766ffF8")

type recordedRequest struct {
	method string
	path   string
	body   []byte
}

type SignerTestSuite struct {
	suite.Suite

	dir    string
	socket string
	server *httptest.Server
	client *Client

	mu       sync.Mutex
	handler  http.HandlerFunc
	requests []recordedRequest
}

func TestSignerTestSuite(t *testing.T) {
	suite.Run(t, new(SignerTestSuite))
}

func (suite *SignerTestSuite) SetupTest() {
	var err error
	suite.dir, err = os.MkdirTemp("", "signer")
	suite.Require().NoError(err)
	suite.socket = filepath.Join(suite.dir, "appd.sock")

	listener, err := net.Listen("unix", suite.socket)
	suite.Require().NoError(err)

	suite.requests = nil
	suite.handler = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}

	suite.server = httptest.NewUnstartedServer(http.HandlerFunc(suite.serve))
	suite.server.Listener.Close()
	suite.server.Listener = listener
	suite.server.Start()

	suite.client = New(suite.socket, 200000, 2*time.Second)
}

func (suite *SignerTestSuite) TearDownTest() {
	suite.server.Close()
	os.RemoveAll(suite.dir)
}

func (suite *SignerTestSuite) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	suite.mu.Lock()
	suite.requests = append(suite.requests, recordedRequest{method: r.Method, path: r.URL.Path, body: body})
	handler := suite.handler
	suite.mu.Unlock()

	handler(w, r)
}

func (suite *SignerTestSuite) setHandler(h http.HandlerFunc) {
	suite.mu.Lock()
	defer suite.mu.Unlock()
	suite.handler = h
}

func (suite *SignerTestSuite) lastRequest() recordedRequest {
	suite.mu.Lock()
	defer suite.mu.Unlock()
	suite.Require().NotEmpty(suite.requests)
	return suite.requests[len(suite.requests)-1]
}

func respondJSON(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func (suite *SignerTestSuite) TestSubmit_Success() {
	response, err := sjson.Set(`{}`, "data", "0xdeadbeef")
	suite.Require().NoError(err)
	suite.setHandler(respondJSON(http.StatusOK, response))

	res, err := suite.client.Submit(context.Background(), contract, []byte{0xda, 0xe1, 0xee, 0x1f, 0x01})
	suite.Require().NoError(err)
	suite.JSONEq(response, string(res))

	req := suite.lastRequest()
	suite.Equal(http.MethodPost, req.method)
	suite.Equal(SignSubmitPath, req.path)
	suite.Equal("eth", gjson.GetBytes(req.body, "tx.kind").String())
	suite.Equal(uint64(200000), gjson.GetBytes(req.body, "tx.data.gas_limit").Uint())
	suite.Equal(contract.Hex(), gjson.GetBytes(req.body, "tx.data.to").String())
	suite.Equal(int64(0), gjson.GetBytes(req.body, "tx.data.value").Int())
	suite.Equal("0xdae1ee1f01", gjson.GetBytes(req.body, "tx.data.data").String())
}

func (suite *SignerTestSuite) TestSubmit_EndpointStatus() {
	suite.setHandler(respondJSON(http.StatusInternalServerError, `{"message":"signer offline"}`))

	_, err := suite.client.Submit(context.Background(), contract, []byte{0x01})
	suite.ErrorIs(err, types.ErrEndpoint)
	suite.Contains(err.Error(), "signer offline")
}

func (suite *SignerTestSuite) TestSubmit_EndpointReportedError() {
	response, err := sjson.Set(`{}`, "error", "nonce too low")
	suite.Require().NoError(err)
	suite.setHandler(respondJSON(http.StatusOK, response))

	_, err = suite.client.Submit(context.Background(), contract, []byte{0x01})
	suite.ErrorIs(err, types.ErrEndpoint)
}

func (suite *SignerTestSuite) TestSubmit_TransportError() {
	client := New(filepath.Join(suite.dir, "missing.sock"), 200000, time.Second)

	_, err := client.Submit(context.Background(), contract, []byte{0x01})
	suite.ErrorIs(err, types.ErrTransport)
}

func (suite *SignerTestSuite) TestSubmit_Timeout() {
	release := make(chan struct{})
	defer close(release)
	suite.setHandler(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})

	client := New(suite.socket, 200000, 100*time.Millisecond)
	_, err := client.Submit(context.Background(), contract, []byte{0x01})
	suite.ErrorIs(err, types.ErrTransport)
}

func (suite *SignerTestSuite) TestCall_Success() {
	result := "0x" +
		"000000000000000000000000000000000000000000000000000000000000002a" +
		"00000000000000000000000000000000000000000000000000000000000003e8"
	response, err := sjson.Set(`{}`, "result", result)
	suite.Require().NoError(err)
	suite.setHandler(respondJSON(http.StatusOK, response))

	got, err := suite.client.Call(context.Background(), contract, []byte{0xf2, 0x9f, 0x41, 0x10})
	suite.Require().NoError(err)
	suite.Equal(result, got)

	req := suite.lastRequest()
	suite.Equal(CallPath, req.path)
	suite.Equal(contract.Hex(), gjson.GetBytes(req.body, "tx.data.to").String())
	suite.Equal("0xf29f4110", gjson.GetBytes(req.body, "tx.data.data").String())
	suite.False(gjson.GetBytes(req.body, "tx.data.gas_limit").Exists())
}

func (suite *SignerTestSuite) TestCall_ResponseFormat() {
	testCases := []struct {
		name string
		body string
	}{
		{"missing result", `{"data":"0x"}`},
		{"non string result", `{"result":42}`},
		{"not json", `ok`},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			suite.setHandler(respondJSON(http.StatusOK, tc.body))

			_, err := suite.client.Call(context.Background(), contract, []byte{0xf2, 0x9f, 0x41, 0x10})
			suite.ErrorIs(err, types.ErrResponseFormat)
		})
	}
}

func (suite *SignerTestSuite) TestCall_EndpointError() {
	suite.setHandler(respondJSON(http.StatusBadGateway, `bad gateway`))

	_, err := suite.client.Call(context.Background(), contract, []byte{0xf2, 0x9f, 0x41, 0x10})
	suite.ErrorIs(err, types.ErrEndpoint)
}

func (suite *SignerTestSuite) TestPing() {
	suite.NoError(suite.client.Ping(context.Background()))

	client := New(filepath.Join(suite.dir, "missing.sock"), 200000, time.Second)
	suite.ErrorIs(client.Ping(context.Background()), types.ErrTransport)
}
