package dispatcher

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/rpc/v2/json2"

	"github.com/morezero/nexus-handler/pkg/handler"
	"github.com/morezero/nexus-handler/pkg/nexus"
)

const jsonrpcTestPrefix = "dispatcher:jsonrpc_test"

func callRPC(t *testing.T, h http.Handler, req *NexusRequest) *NexusResponse {
	t.Helper()
	body, err := json2.EncodeClientRequest(RPCServiceName+".Dispatch", req)
	if err != nil {
		t.Fatalf("%s - encode request: %v", jsonrpcTestPrefix, err)
	}
	httpReq := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httpReq)
	if rec.Code != http.StatusOK {
		t.Fatalf("%s - status = %d, body %s", jsonrpcTestPrefix, rec.Code, rec.Body.String())
	}

	var resp NexusResponse
	if err := json2.DecodeClientResponse(rec.Body, &resp); err != nil {
		t.Fatalf("%s - decode response: %v", jsonrpcTestPrefix, err)
	}
	return &resp
}

func TestRPCHandler_StartSync(t *testing.T) {
	engine := &fakeEngine{
		startResult: handler.NewSyncResult(handler.NewHandlerContent([]byte(`"Hello, bob"`), nexus.Header{"type": "application/json"})),
	}
	h, err := NewRPCHandler(NewDispatcher(engine), 0)
	if err != nil {
		t.Fatalf("%s - NewRPCHandler: %v", jsonrpcTestPrefix, err)
	}

	resp := callRPC(t, h, &NexusRequest{
		ID:        "rpc-1",
		Method:    MethodStartOperation,
		Service:   "GreetingService",
		Operation: "SayHello",
		Payload:   []byte(`"bob"`),
	})
	if !resp.Ok || resp.ID != "rpc-1" {
		t.Fatalf("%s - response = %+v", jsonrpcTestPrefix, resp)
	}
	if string(resp.Result.Payload) != `"Hello, bob"` {
		t.Errorf("%s - payload = %s", jsonrpcTestPrefix, resp.Result.Payload)
	}
	if string(engine.input) != `"bob"` {
		t.Errorf("%s - engine input = %s", jsonrpcTestPrefix, engine.input)
	}
}

func TestRPCHandler_ErrorsStayInEnvelope(t *testing.T) {
	engine := &fakeEngine{err: handler.NewHandlerError(handler.HandlerErrorTypeNotFound, "operation op-9 not found")}
	h, err := NewRPCHandler(NewDispatcher(engine), 0)
	if err != nil {
		t.Fatalf("%s - NewRPCHandler: %v", jsonrpcTestPrefix, err)
	}

	resp := callRPC(t, h, &NexusRequest{
		ID:             "rpc-2",
		Method:         MethodFetchOperationInfo,
		Service:        "GreetingService",
		Operation:      "SayHelloAsync",
		OperationToken: "op-9",
	})
	if resp.Ok || resp.Error == nil {
		t.Fatalf("%s - expected error envelope, got %+v", jsonrpcTestPrefix, resp)
	}
	if resp.Error.Code != "NOT_FOUND" || resp.Error.Retryable {
		t.Errorf("%s - error = %+v, want NOT_FOUND non-retryable", jsonrpcTestPrefix, resp.Error)
	}
}

func TestRPCHandler_RejectsGet(t *testing.T) {
	h, err := NewRPCHandler(NewDispatcher(&fakeEngine{}), 0)
	if err != nil {
		t.Fatalf("%s - NewRPCHandler: %v", jsonrpcTestPrefix, err)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rpc", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("%s - GET status = %d, want 405", jsonrpcTestPrefix, rec.Code)
	}
}
