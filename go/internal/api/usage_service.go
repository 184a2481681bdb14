package api

import (
	"context"
	"errors"
	"net/http"
	"net/netip"

	"connectrpc.com/connect"

	"github.com/mcdev12/zippy/go/internal/usage"
)

// UsageGate tracks the free solo attempt per address.
type UsageGate interface {
	HasUsed(ctx context.Context, addr string) (bool, error)
	Record(ctx context.Context, addr string) error
}

// UsageService answers whether an unauthenticated caller already spent
// their free solo attempt. The caller is identified by address.
type UsageService struct {
	gate    UsageGate
	proxies []netip.Prefix
}

// NewUsageService keys callers by peer address, or by forwarded address
// when the peer is one of proxies.
func NewUsageService(gate UsageGate, proxies ...netip.Prefix) *UsageService {
	return &UsageService{gate: gate, proxies: proxies}
}

func (s *UsageService) Check(ctx context.Context, req *connect.Request[UsageCheckRequest]) (*connect.Response[UsageCheckResponse], error) {
	used, err := s.gate.HasUsed(ctx, clientAddress(req.Header(), req.Peer(), s.proxies))
	if err != nil {
		return nil, usageError(err)
	}
	return connect.NewResponse(&UsageCheckResponse{Used: used}), nil
}

func (s *UsageService) Record(ctx context.Context, req *connect.Request[UsageRecordRequest]) (*connect.Response[UsageRecordResponse], error) {
	if err := s.gate.Record(ctx, clientAddress(req.Header(), req.Peer(), s.proxies)); err != nil {
		return nil, usageError(err)
	}
	return connect.NewResponse(&UsageRecordResponse{}), nil
}

func usageError(err error) error {
	if errors.Is(err, usage.ErrNoAddress) {
		return connect.NewError(connect.CodeInvalidArgument, err)
	}
	return connect.NewError(connect.CodeUnavailable, err)
}

func NewUsageServiceHandler(svc *UsageService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)
	check := connect.NewUnaryHandler(UsageServiceCheckProcedure, svc.Check, opts...)
	record := connect.NewUnaryHandler(UsageServiceRecordProcedure, svc.Record, opts...)
	return "/" + UsageServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case UsageServiceCheckProcedure:
			check.ServeHTTP(w, r)
		case UsageServiceRecordProcedure:
			record.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}
