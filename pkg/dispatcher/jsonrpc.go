package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
)

const jsonrpcLogPrefix = "dispatcher:jsonrpc"

// RPCServiceName is the JSON-RPC service name; the method is "Nexus.Dispatch".
const RPCServiceName = "Nexus"

// RPCService serves the Nexus envelope over HTTP JSON-RPC 2.0. Lifecycle
// failures travel inside the NexusResponse, never as JSON-RPC errors.
type RPCService struct {
	disp           *Dispatcher
	requestTimeout time.Duration
}

// Dispatch handles one envelope. The request is bounded the same way as on COMMS.
func (s *RPCService) Dispatch(r *http.Request, req *NexusRequest, reply *NexusResponse) error {
	ctx, cancel := context.WithTimeout(r.Context(), requestDeadline(req, s.requestTimeout))
	defer cancel()
	*reply = *s.disp.Dispatch(ctx, req)
	return nil
}

// NewRPCHandler returns an http.Handler serving the JSON-RPC binding.
func NewRPCHandler(disp *Dispatcher, requestTimeout time.Duration) (http.Handler, error) {
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}
	server := rpc.NewServer()
	server.RegisterCodec(json2.NewCodec(), "application/json")
	server.RegisterCodec(json2.NewCodec(), "application/json;charset=UTF-8")
	if err := server.RegisterService(&RPCService{disp: disp, requestTimeout: requestTimeout}, RPCServiceName); err != nil {
		return nil, fmt.Errorf("%s - failed to register service: %w", jsonrpcLogPrefix, err)
	}
	slog.Info(fmt.Sprintf("%s - Registered JSON-RPC method %s.Dispatch", jsonrpcLogPrefix, RPCServiceName))
	return server, nil
}
