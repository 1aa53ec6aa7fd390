package frontend

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"google.golang.org/grpc"

	"github.com/dedkryl/glim-dense-cloud/backend"
	"github.com/dedkryl/glim-dense-cloud/logging"
)

// serviceName is this package's fully-qualified gRPC service name, used to
// build each method's path ("/serviceName/MethodName") the way a .proto
// package/service pair would.
const serviceName = "frontend.GlobalMapping"

// Server is the gRPC-facing wrapper around a backend.GlobalMapping (§12's
// "minimal gRPC front door" supplement). Load replaces mapping wholesale, so
// every other method takes mu for reading.
type Server struct {
	mu      sync.RWMutex
	mapping *backend.GlobalMapping
	cfg     backend.Config
	logger  logging.Logger
}

// NewServer constructs a Server around a freshly built GlobalMapping.
func NewServer(cfg backend.Config, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewDebugLogger("frontend")
	}
	return &Server{
		mapping: backend.New(cfg, logger),
		cfg:     cfg,
		logger:  logger,
	}
}

// Mapping exposes the current backing GlobalMapping, for callers embedding
// this Server directly rather than going over the wire (cmd/globalmapd).
func (s *Server) Mapping() *backend.GlobalMapping {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mapping
}

// InsertIMU implements the insert_imu RPC.
func (s *Server) InsertIMU(_ context.Context, req *InsertIMURequest) (*InsertIMUResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.mapping.InsertIMU(req.Stamp, req.Accel, req.Gyro)
	return &InsertIMUResponse{}, nil
}

// InsertSubmap implements the insert_submap RPC.
func (s *Server) InsertSubmap(_ context.Context, req *InsertSubmapRequest) (*InsertSubmapResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	submap := req.Submap.toSubmap()
	if err := s.mapping.InsertSubmap(submap); err != nil {
		return nil, errors.Wrap(err, "insert_submap")
	}
	return &InsertSubmapResponse{SubmapID: submap.ID}, nil
}

// FindOverlappingSubmaps implements the find_overlapping_submaps RPC.
func (s *Server) FindOverlappingSubmaps(_ context.Context, req *FindOverlappingSubmapsRequest) (*FindOverlappingSubmapsResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.mapping.FindOverlappingSubmaps(req.MinOverlap); err != nil {
		return nil, errors.Wrap(err, "find_overlapping_submaps")
	}
	return &FindOverlappingSubmapsResponse{}, nil
}

// Optimize implements the optimize RPC.
func (s *Server) Optimize(_ context.Context, _ *OptimizeRequest) (*OptimizeResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.mapping.Optimize(); err != nil {
		return nil, errors.Wrap(err, "optimize")
	}
	return &OptimizeResponse{}, nil
}

// Save implements the save RPC.
func (s *Server) Save(_ context.Context, req *SaveRequest) (*SaveResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.mapping.Save(req.Path); err != nil {
		return nil, errors.Wrap(err, "save")
	}
	return &SaveResponse{}, nil
}

// Load implements the load RPC: it replaces the server's GlobalMapping
// wholesale with the one reconstructed from Path, under the active Config.
func (s *Server) Load(_ context.Context, req *LoadRequest) (*LoadResponse, error) {
	loaded, err := backend.Load(req.Path, s.cfg, s.logger)
	if err != nil {
		return nil, errors.Wrap(err, "load")
	}
	s.mu.Lock()
	s.mapping = loaded
	s.mu.Unlock()
	return &LoadResponse{NeedsRecover: loaded.NeedsRecover()}, nil
}

func decodeRequest(dec func(interface{}) error, req interface{}) error {
	return dec(req)
}

func insertIMUHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(InsertIMURequest)
	if err := decodeRequest(dec, req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).InsertIMU(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/InsertIMU"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Server).InsertIMU(ctx, req.(*InsertIMURequest))
	}
	return interceptor(ctx, req, info, handler)
}

func insertSubmapHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(InsertSubmapRequest)
	if err := decodeRequest(dec, req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).InsertSubmap(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/InsertSubmap"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Server).InsertSubmap(ctx, req.(*InsertSubmapRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func findOverlappingSubmapsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(FindOverlappingSubmapsRequest)
	if err := decodeRequest(dec, req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).FindOverlappingSubmaps(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/FindOverlappingSubmaps"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Server).FindOverlappingSubmaps(ctx, req.(*FindOverlappingSubmapsRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func optimizeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(OptimizeRequest)
	if err := decodeRequest(dec, req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).Optimize(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Optimize"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Server).Optimize(ctx, req.(*OptimizeRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func saveHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(SaveRequest)
	if err := decodeRequest(dec, req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).Save(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Save"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Server).Save(ctx, req.(*SaveRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func loadHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(LoadRequest)
	if err := decodeRequest(dec, req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).Load(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Load"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Server).Load(ctx, req.(*LoadRequest))
	}
	return interceptor(ctx, req, info, handler)
}

// serviceDesc is this package's hand-written equivalent of a protoc-gen-go-
// grpc ServiceDesc: one MethodDesc per RPC, routed to the Server methods
// above.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "InsertIMU", Handler: insertIMUHandler},
		{MethodName: "InsertSubmap", Handler: insertSubmapHandler},
		{MethodName: "FindOverlappingSubmaps", Handler: findOverlappingSubmapsHandler},
		{MethodName: "Optimize", Handler: optimizeHandler},
		{MethodName: "Save", Handler: saveHandler},
		{MethodName: "Load", Handler: loadHandler},
	},
}

// RegisterServer registers srv on s so it answers every RPC in serviceDesc.
func RegisterServer(s *grpc.Server, srv *Server) {
	s.RegisterService(&serviceDesc, srv)
}
