package frontend

import (
	"context"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
)

// Client is a thin typed wrapper over a grpc.ClientConn dialed to a Server,
// mirroring the teacher's server.go/client.go pairing for each resource
// service.
type Client struct {
	cc *grpc.ClientConn
}

// NewClient wraps an already-dialed connection.
func NewClient(cc *grpc.ClientConn) *Client {
	return &Client{cc: cc}
}

func method(name string) string {
	return "/" + serviceName + "/" + name
}

func (c *Client) invoke(ctx context.Context, name string, req, resp interface{}) error {
	if err := c.cc.Invoke(ctx, method(name), req, resp, grpc.CallContentSubtype(codecName)); err != nil {
		return errors.Wrapf(err, "frontend: %s", name)
	}
	return nil
}

// InsertIMU calls the insert_imu RPC.
func (c *Client) InsertIMU(ctx context.Context, req *InsertIMURequest) (*InsertIMUResponse, error) {
	resp := new(InsertIMUResponse)
	if err := c.invoke(ctx, "InsertIMU", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// InsertSubmap calls the insert_submap RPC.
func (c *Client) InsertSubmap(ctx context.Context, req *InsertSubmapRequest) (*InsertSubmapResponse, error) {
	resp := new(InsertSubmapResponse)
	if err := c.invoke(ctx, "InsertSubmap", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// FindOverlappingSubmaps calls the find_overlapping_submaps RPC.
func (c *Client) FindOverlappingSubmaps(ctx context.Context, req *FindOverlappingSubmapsRequest) (*FindOverlappingSubmapsResponse, error) {
	resp := new(FindOverlappingSubmapsResponse)
	if err := c.invoke(ctx, "FindOverlappingSubmaps", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Optimize calls the optimize RPC.
func (c *Client) Optimize(ctx context.Context) (*OptimizeResponse, error) {
	resp := new(OptimizeResponse)
	if err := c.invoke(ctx, "Optimize", &OptimizeRequest{}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Save calls the save RPC.
func (c *Client) Save(ctx context.Context, path string) (*SaveResponse, error) {
	resp := new(SaveResponse)
	if err := c.invoke(ctx, "Save", &SaveRequest{Path: path}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Load calls the load RPC.
func (c *Client) Load(ctx context.Context, path string) (*LoadResponse, error) {
	resp := new(LoadResponse)
	if err := c.invoke(ctx, "Load", &LoadRequest{Path: path}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}
