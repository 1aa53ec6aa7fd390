package frontend

import (
	"github.com/golang/geo/r3"

	"github.com/dedkryl/glim-dense-cloud/backend"
	"github.com/dedkryl/glim-dense-cloud/pointcloud"
	"github.com/dedkryl/glim-dense-cloud/spatialmath"
)

// PoseMessage is the wire form of a spatialmath.Pose: a translation plus the
// one exported Orientation implementation, the same shape backend's
// persistence DTOs use for the same reason (spatialmath.Pose's only concrete
// implementation is unexported).
type PoseMessage struct {
	Point r3.Vector
	Quat  spatialmath.Quaternion
}

func toPoseMessage(p spatialmath.Pose) PoseMessage {
	q := p.Orientation().Quaternion()
	return PoseMessage{Point: p.Point(), Quat: spatialmath.Quaternion{Real: q.Real, Imag: q.Imag, Jmag: q.Jmag, Kmag: q.Kmag}}
}

func (m PoseMessage) toPose() spatialmath.Pose {
	quat := m.Quat
	return spatialmath.NewPoseFromOrientation(m.Point, &quat)
}

// EndpointFrameMessage is the wire form of backend.EndpointFrame.
type EndpointFrameMessage struct {
	Pose     PoseMessage
	Bias     [6]float64
	Velocity [3]float64
	Stamp    float64
}

func toEndpointFrameMessage(f backend.EndpointFrame) EndpointFrameMessage {
	return EndpointFrameMessage{Pose: toPoseMessage(f.Pose), Bias: f.Bias, Velocity: f.Velocity, Stamp: f.Stamp}
}

func (m EndpointFrameMessage) toEndpointFrame() backend.EndpointFrame {
	return backend.EndpointFrame{Pose: m.Pose.toPose(), Bias: m.Bias, Velocity: m.Velocity, Stamp: m.Stamp}
}

// SubmapMessage is the wire form of a backend.Submap, as a front end would
// hand it to insert_submap: the merged keyframe and the endpoint poses/
// frames backend.InsertSubmap actually reads. VoxelMaps and SubsampledCloud
// are derived server-side (backend.InsertSubmap builds them), so they are
// not part of the wire message.
type SubmapMessage struct {
	MergedKeyframe   []r3.Vector
	TWorldOrigin     PoseMessage
	TOriginEndpointL PoseMessage
	TOriginEndpointR PoseMessage
	OriginFirst      EndpointFrameMessage
	OriginLast       EndpointFrameMessage
	OptimFirst       EndpointFrameMessage
	OptimLast        EndpointFrameMessage
}

func toSubmapMessage(s *backend.Submap) SubmapMessage {
	return SubmapMessage{
		MergedKeyframe:   s.MergedKeyframe.Points(),
		TWorldOrigin:     toPoseMessage(s.TWorldOrigin),
		TOriginEndpointL: toPoseMessage(s.TOriginEndpointL),
		TOriginEndpointR: toPoseMessage(s.TOriginEndpointR),
		OriginFirst:      toEndpointFrameMessage(s.OriginFirst),
		OriginLast:       toEndpointFrameMessage(s.OriginLast),
		OptimFirst:       toEndpointFrameMessage(s.OptimFirst),
		OptimLast:        toEndpointFrameMessage(s.OptimLast),
	}
}

func (m SubmapMessage) toSubmap() *backend.Submap {
	return &backend.Submap{
		MergedKeyframe:   pointcloud.NewFromPoints(m.MergedKeyframe),
		TWorldOrigin:     m.TWorldOrigin.toPose(),
		TOriginEndpointL: m.TOriginEndpointL.toPose(),
		TOriginEndpointR: m.TOriginEndpointR.toPose(),
		OriginFirst:      m.OriginFirst.toEndpointFrame(),
		OriginLast:       m.OriginLast.toEndpointFrame(),
		OptimFirst:       m.OptimFirst.toEndpointFrame(),
		OptimLast:        m.OptimLast.toEndpointFrame(),
	}
}

// InsertIMURequest/Response implement the insert_imu RPC (§4.4, §4.7).
type InsertIMURequest struct {
	Stamp float64
	Accel r3.Vector
	Gyro  r3.Vector
}

type InsertIMUResponse struct{}

// InsertSubmapRequest/Response implement the insert_submap RPC (§4.5).
type InsertSubmapRequest struct {
	Submap SubmapMessage
}

type InsertSubmapResponse struct {
	SubmapID int
}

// FindOverlappingSubmapsRequest/Response implement the
// find_overlapping_submaps RPC (§4.5).
type FindOverlappingSubmapsRequest struct {
	MinOverlap float64
}

type FindOverlappingSubmapsResponse struct{}

// OptimizeRequest/Response implement the optimize RPC (§4.5).
type OptimizeRequest struct{}

type OptimizeResponse struct{}

// SaveRequest/Response implement the save RPC (§4.6).
type SaveRequest struct {
	Path string
}

type SaveResponse struct{}

// LoadRequest/Response implement the load RPC (§4.6). A successful load
// replaces the server's in-memory GlobalMapping with the one reloaded from
// Path.
type LoadRequest struct {
	Path string
}

type LoadResponse struct {
	NeedsRecover bool
}
