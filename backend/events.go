package backend

import "github.com/dedkryl/glim-dense-cloud/spatialmath"

// Event is the payload passed to an observer hook. Which fields are
// populated depends on which hook fired; see the EventKind constants below.
type Event struct {
	Kind      EventKind
	SubmapID  int
	Stamp     float64
	Pose      spatialmath.Pose
	NumFactors int
}

// EventKind names one of the five observer hooks from §4.7 ("Observer hooks
// fire at: IMU insert, submap insert, pre-smoother-update, post-smoother-
// update, post-pose-refresh").
type EventKind int

const (
	EventIMU EventKind = iota
	EventSubmapInsert
	EventPreUpdate
	EventPostUpdate
	EventPoseRefresh
)

func (k EventKind) String() string {
	switch k {
	case EventIMU:
		return "imu"
	case EventSubmapInsert:
		return "submap_insert"
	case EventPreUpdate:
		return "pre_update"
	case EventPostUpdate:
		return "post_update"
	case EventPoseRefresh:
		return "pose_refresh"
	default:
		return "unknown"
	}
}

// observers holds one callback list per event kind. Hook invocation is
// synchronous on the caller's goroutine, matching §4.7's "invoked
// synchronously on the caller thread."
type observers struct {
	imu          []func(Event)
	submapInsert []func(Event)
	preUpdate    []func(Event)
	postUpdate   []func(Event)
	poseRefresh  []func(Event)
}

// AddObserver registers fn to be called whenever an event of kind occurs.
func (g *GlobalMapping) AddObserver(kind EventKind, fn func(Event)) {
	switch kind {
	case EventIMU:
		g.observers.imu = append(g.observers.imu, fn)
	case EventSubmapInsert:
		g.observers.submapInsert = append(g.observers.submapInsert, fn)
	case EventPreUpdate:
		g.observers.preUpdate = append(g.observers.preUpdate, fn)
	case EventPostUpdate:
		g.observers.postUpdate = append(g.observers.postUpdate, fn)
	case EventPoseRefresh:
		g.observers.poseRefresh = append(g.observers.poseRefresh, fn)
	}
}

func (g *GlobalMapping) fire(kind EventKind, ev Event) {
	ev.Kind = kind
	var list []func(Event)
	switch kind {
	case EventIMU:
		list = g.observers.imu
	case EventSubmapInsert:
		list = g.observers.submapInsert
	case EventPreUpdate:
		list = g.observers.preUpdate
	case EventPostUpdate:
		list = g.observers.postUpdate
	case EventPoseRefresh:
		list = g.observers.poseRefresh
	}
	for _, fn := range list {
		fn(ev)
	}
}
