package frontend

import (
	"context"
	"net"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/dedkryl/glim-dense-cloud/backend"
	"github.com/dedkryl/glim-dense-cloud/logging"
	"github.com/dedkryl/glim-dense-cloud/spatialmath"
)

const bufSize = 1 << 20

func dialTestServer(t *testing.T, srv *Server) (*Client, func()) {
	lis := bufconn.Listen(bufSize)
	gs := grpc.NewServer()
	RegisterServer(gs, srv)
	go gs.Serve(lis)

	dialer := func(context.Context, string) (net.Conn, error) { return lis.Dial() }
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	test.That(t, err, test.ShouldBeNil)

	return NewClient(conn), func() {
		conn.Close()
		gs.Stop()
	}
}

func testSubmapMessage(origin r3.Vector) SubmapMessage {
	pose := spatialmath.NewPoseFromPoint(origin)
	frame := EndpointFrameMessage{Pose: toPoseMessage(pose), Stamp: 0}
	return SubmapMessage{
		MergedKeyframe:   []r3.Vector{{}, {X: 0.1}, {Y: 0.1}, {Z: 0.1}},
		TWorldOrigin:     toPoseMessage(pose),
		TOriginEndpointL: toPoseMessage(spatialmath.NewZeroPose()),
		TOriginEndpointR: toPoseMessage(spatialmath.NewZeroPose()),
		OriginFirst:      frame,
		OriginLast:       frame,
		OptimFirst:       frame,
		OptimLast:        frame,
	}
}

func TestServerInsertSubmapOverGRPC(t *testing.T) {
	cfg := backend.DefaultConfig()
	cfg.EnableIMU = false
	cfg.RandomSamplingRate = 1.0
	srv := NewServer(cfg, logging.NewTestLogger(t))
	client, closeAll := dialTestServer(t, srv)
	defer closeAll()

	ctx := context.Background()
	resp, err := client.InsertSubmap(ctx, &InsertSubmapRequest{Submap: testSubmapMessage(r3.Vector{})})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp.SubmapID, test.ShouldEqual, 0)

	test.That(t, srv.Mapping().Len(), test.ShouldEqual, 1)
}

func TestServerSaveLoadOverGRPC(t *testing.T) {
	cfg := backend.DefaultConfig()
	cfg.EnableIMU = false
	cfg.RandomSamplingRate = 1.0
	srv := NewServer(cfg, logging.NewTestLogger(t))
	client, closeAll := dialTestServer(t, srv)
	defer closeAll()

	ctx := context.Background()
	_, err := client.InsertSubmap(ctx, &InsertSubmapRequest{Submap: testSubmapMessage(r3.Vector{})})
	test.That(t, err, test.ShouldBeNil)
	_, err = client.InsertSubmap(ctx, &InsertSubmapRequest{Submap: testSubmapMessage(r3.Vector{X: 0.3})})
	test.That(t, err, test.ShouldBeNil)

	dir := filepath.Join(t.TempDir(), "graph")
	_, err = client.Save(ctx, dir)
	test.That(t, err, test.ShouldBeNil)

	loadResp, err := client.Load(ctx, dir)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loadResp.NeedsRecover, test.ShouldBeFalse)
	test.That(t, srv.Mapping().Len(), test.ShouldEqual, 2)
}

func TestServerOptimizeAndFindOverlappingSubmaps(t *testing.T) {
	cfg := backend.DefaultConfig()
	cfg.EnableIMU = false
	cfg.RandomSamplingRate = 1.0
	srv := NewServer(cfg, logging.NewTestLogger(t))
	client, closeAll := dialTestServer(t, srv)
	defer closeAll()

	ctx := context.Background()
	_, err := client.InsertSubmap(ctx, &InsertSubmapRequest{Submap: testSubmapMessage(r3.Vector{})})
	test.That(t, err, test.ShouldBeNil)
	_, err = client.InsertSubmap(ctx, &InsertSubmapRequest{Submap: testSubmapMessage(r3.Vector{X: 0.3})})
	test.That(t, err, test.ShouldBeNil)

	_, err = client.Optimize(ctx)
	test.That(t, err, test.ShouldBeNil)

	_, err = client.FindOverlappingSubmaps(ctx, &FindOverlappingSubmapsRequest{MinOverlap: 0.2})
	test.That(t, err, test.ShouldBeNil)
}

func TestJSONCodecRoundTrip(t *testing.T) {
	codec := jsonCodec{}
	req := &InsertIMURequest{Stamp: 1.5, Accel: r3.Vector{X: 1, Y: 2, Z: 3}, Gyro: r3.Vector{X: 0.1}}
	data, err := codec.Marshal(req)
	test.That(t, err, test.ShouldBeNil)

	var out InsertIMURequest
	test.That(t, codec.Unmarshal(data, &out), test.ShouldBeNil)
	test.That(t, out.Stamp, test.ShouldAlmostEqual, 1.5)
	test.That(t, out.Accel.X, test.ShouldAlmostEqual, 1.0)
}
