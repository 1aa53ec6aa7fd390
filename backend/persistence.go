package backend

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/dedkryl/glim-dense-cloud/graph"
	"github.com/dedkryl/glim-dense-cloud/logging"
	"github.com/dedkryl/glim-dense-cloud/pointcloud"
	"github.com/dedkryl/glim-dense-cloud/spatialmath"
)

// Persistence (§4.6, C7): save/load the graph, its estimate, and every
// submap to a directory; recover_graph repairs whatever a partial or
// corrupted load could not restore. Matching-cost factors (GICP/VGICP/
// VGICPGPU) reference live voxel maps and clouds, so they are never gob-
// encoded directly; graph.txt instead carries one descriptor line per such
// factor, and load reconstructs them against the freshly rebuilt submaps.

// poseDTO is the gob-encodable shape of a spatialmath.Pose: a translation
// plus the one exported Orientation implementation, reassembled via
// NewPoseFromOrientation exactly as the client boundary does.
type poseDTO struct {
	Point r3.Vector
	Quat  spatialmath.Quaternion
}

func savePose(p spatialmath.Pose) poseDTO {
	q := p.Orientation().Quaternion()
	return poseDTO{Point: p.Point(), Quat: spatialmath.Quaternion{Real: q.Real, Imag: q.Imag, Jmag: q.Jmag, Kmag: q.Kmag}}
}

func (d poseDTO) toPose() spatialmath.Pose {
	quat := d.Quat
	return spatialmath.NewPoseFromOrientation(d.Point, &quat)
}

type endpointFrameDTO struct {
	Pose     poseDTO
	Bias     [6]float64
	Velocity [3]float64
	Stamp    float64
}

func saveEndpointFrame(f EndpointFrame) endpointFrameDTO {
	return endpointFrameDTO{Pose: savePose(f.Pose), Bias: f.Bias, Velocity: f.Velocity, Stamp: f.Stamp}
}

func (d endpointFrameDTO) toEndpointFrame() EndpointFrame {
	return EndpointFrame{Pose: d.Pose.toPose(), Bias: d.Bias, Velocity: d.Velocity, Stamp: d.Stamp}
}

// submapDTO is a submap's on-disk form. VoxelMaps and SubsampledCloud are not
// stored: load rebuilds them from MergedKeyframe with the same adaptive
// resolution policy buildVoxelMaps already uses at insert time.
type submapDTO struct {
	MergedKeyframe   []r3.Vector
	TWorldOrigin     poseDTO
	TOriginEndpointL poseDTO
	TOriginEndpointR poseDTO
	OriginFirst      endpointFrameDTO
	OriginLast       endpointFrameDTO
	OptimFirst       endpointFrameDTO
	OptimLast        endpointFrameDTO
}

func saveSubmapDTO(s *Submap) submapDTO {
	return submapDTO{
		MergedKeyframe:   s.MergedKeyframe.Points(),
		TWorldOrigin:     savePose(s.TWorldOrigin),
		TOriginEndpointL: savePose(s.TOriginEndpointL),
		TOriginEndpointR: savePose(s.TOriginEndpointR),
		OriginFirst:      saveEndpointFrame(s.OriginFirst),
		OriginLast:       saveEndpointFrame(s.OriginLast),
		OptimFirst:       saveEndpointFrame(s.OptimFirst),
		OptimLast:        saveEndpointFrame(s.OptimLast),
	}
}

func (d submapDTO) toSubmap() *Submap {
	return &Submap{
		MergedKeyframe:   pointcloud.NewFromPoints(d.MergedKeyframe),
		TWorldOrigin:     d.TWorldOrigin.toPose(),
		TOriginEndpointL: d.TOriginEndpointL.toPose(),
		TOriginEndpointR: d.TOriginEndpointR.toPose(),
		OriginFirst:      d.OriginFirst.toEndpointFrame(),
		OriginLast:       d.OriginLast.toEndpointFrame(),
		OptimFirst:       d.OptimFirst.toEndpointFrame(),
		OptimLast:        d.OptimLast.toEndpointFrame(),
	}
}

// Variable kinds, discriminating graph.Values' three concrete Variable
// implementations for values.bin.
const (
	variablePose = "pose"
	variableVec3 = "vec3"
	variableVec6 = "vec6"
)

type variableDTO struct {
	Key  graph.Key
	Kind string
	Pose poseDTO
	Vec3 r3.Vector
	Vec6 [6]float64
}

func encodeValue(k graph.Key, v graph.Variable) variableDTO {
	switch val := v.(type) {
	case graph.PoseVariable:
		return variableDTO{Key: k, Kind: variablePose, Pose: savePose(val.Pose)}
	case graph.Vector3Variable:
		return variableDTO{Key: k, Kind: variableVec3, Vec3: val.Value}
	case graph.Vector6Variable:
		return variableDTO{Key: k, Kind: variableVec6, Vec6: val.Value}
	default:
		return variableDTO{}
	}
}

type valuesFile struct {
	Vars []variableDTO
}

// Factor variants, discriminating the concrete Go factor types that share a
// FactorKind (PriorPoseFactor/PriorBiasFactor both report KindPrior;
// BetweenPoseFactor/BetweenBiasFactor/BetweenVector3Factor all report
// KindBetween), which FactorKind alone cannot round-trip through gob.
const (
	factorPriorPose   = "prior_pose"
	factorDamping     = "damping"
	factorBetweenPose = "between_pose"
	factorRotateVec   = "rotate_vec"
	factorPriorBias   = "prior_bias"
	factorBetweenBias = "between_bias"
	factorBetweenVec3 = "between_vec3"
	factorIMU         = "imu_preint"
)

type preintegratedDTO struct {
	DeltaPosition r3.Vector
	DeltaVelocity r3.Vector
	DeltaRotation spatialmath.Quaternion
	Dt            float64
	NumSamples    int
}

// factorDTO is a flat union of every serializable factor's fields, tagged by
// Variant. A single struct (rather than one gob-registered type per variant)
// keeps graph.bin's codec self-contained to this file.
type factorDTO struct {
	Variant string

	Key     graph.Key
	KeyA    graph.Key
	KeyB    graph.Key
	PoseKey graph.Key
	VelKey  graph.Key

	TargetPose poseDTO
	DeltaPose  poseDTO
	TargetBias [6]float64
	DeltaBias  [6]float64
	DeltaVec3  [3]float64

	ELeft, VLeft, BLeft, ERight, VRight graph.Key
	Measurement                         preintegratedDTO

	SqrtInfo float64
}

// encodeFactor returns fd, true for every factor kind graph.bin stores
// directly; it returns ok=false for the matching-cost kinds (GICP/VGICP/
// VGICPGPU), which the caller must instead record as a graph.txt descriptor.
func encodeFactor(f graph.Factor) (factorDTO, bool) {
	switch v := f.(type) {
	case *PriorPoseFactor:
		return factorDTO{Variant: factorPriorPose, Key: v.Key, TargetPose: savePose(v.Target), SqrtInfo: v.SqrtInfo}, true
	case *DampingFactor:
		return factorDTO{Variant: factorDamping, Key: v.Key, TargetPose: savePose(v.Target), SqrtInfo: v.SqrtInfo}, true
	case *BetweenPoseFactor:
		return factorDTO{Variant: factorBetweenPose, KeyA: v.KeyA, KeyB: v.KeyB, DeltaPose: savePose(v.Delta), SqrtInfo: v.SqrtInfo}, true
	case *RotateVectorFactor:
		return factorDTO{Variant: factorRotateVec, PoseKey: v.PoseKey, VelKey: v.VelKey, SqrtInfo: v.SqrtInfo}, true
	case *PriorBiasFactor:
		return factorDTO{Variant: factorPriorBias, Key: v.Key, TargetBias: v.Target, SqrtInfo: v.SqrtInfo}, true
	case *BetweenBiasFactor:
		return factorDTO{Variant: factorBetweenBias, KeyA: v.KeyA, KeyB: v.KeyB, DeltaBias: v.Delta, SqrtInfo: v.SqrtInfo}, true
	case *BetweenVector3Factor:
		return factorDTO{Variant: factorBetweenVec3, KeyA: v.KeyA, KeyB: v.KeyB, DeltaVec3: v.Delta, SqrtInfo: v.SqrtInfo}, true
	case *IMUPreintegrationFactor:
		q := v.Measurement.DeltaRotation.Quaternion()
		return factorDTO{
			Variant: factorIMU,
			ELeft:   v.ELeft, VLeft: v.VLeft, BLeft: v.BLeft, ERight: v.ERight, VRight: v.VRight,
			Measurement: preintegratedDTO{
				DeltaPosition: v.Measurement.DeltaPosition,
				DeltaVelocity: v.Measurement.DeltaVelocity,
				DeltaRotation: spatialmath.Quaternion{Real: q.Real, Imag: q.Imag, Jmag: q.Jmag, Kmag: q.Kmag},
				Dt:            v.Measurement.Dt,
				NumSamples:    v.Measurement.NumSamples,
			},
			SqrtInfo: v.SqrtInfo,
		}, true
	default:
		return factorDTO{}, false
	}
}

// decodeFactor returns nil for a Variant it does not recognize; load treats a
// nil factor as a null factor that must be stripped and flags needsRecover.
func decodeFactor(fd factorDTO) graph.Factor {
	switch fd.Variant {
	case factorPriorPose:
		return &PriorPoseFactor{Key: fd.Key, Target: fd.TargetPose.toPose(), SqrtInfo: fd.SqrtInfo}
	case factorDamping:
		return &DampingFactor{Key: fd.Key, Target: fd.TargetPose.toPose(), SqrtInfo: fd.SqrtInfo}
	case factorBetweenPose:
		return &BetweenPoseFactor{KeyA: fd.KeyA, KeyB: fd.KeyB, Delta: fd.DeltaPose.toPose(), SqrtInfo: fd.SqrtInfo}
	case factorRotateVec:
		return &RotateVectorFactor{PoseKey: fd.PoseKey, VelKey: fd.VelKey, SqrtInfo: fd.SqrtInfo}
	case factorPriorBias:
		return &PriorBiasFactor{Key: fd.Key, Target: fd.TargetBias, SqrtInfo: fd.SqrtInfo}
	case factorBetweenBias:
		return &BetweenBiasFactor{KeyA: fd.KeyA, KeyB: fd.KeyB, Delta: fd.DeltaBias, SqrtInfo: fd.SqrtInfo}
	case factorBetweenVec3:
		return &BetweenVector3Factor{KeyA: fd.KeyA, KeyB: fd.KeyB, Delta: fd.DeltaVec3, SqrtInfo: fd.SqrtInfo}
	case factorIMU:
		q := fd.Measurement.DeltaRotation
		return &IMUPreintegrationFactor{
			ELeft: fd.ELeft, VLeft: fd.VLeft, BLeft: fd.BLeft, ERight: fd.ERight, VRight: fd.VRight,
			Measurement: PreintegratedMeasurement{
				DeltaPosition: fd.Measurement.DeltaPosition,
				DeltaVelocity: fd.Measurement.DeltaVelocity,
				DeltaRotation: &q,
				Dt:            fd.Measurement.Dt,
				NumSamples:    fd.Measurement.NumSamples,
			},
			SqrtInfo: fd.SqrtInfo,
		}
	default:
		return nil
	}
}

type graphFile struct {
	Factors []factorDTO
}

// matchingCostDescriptor is one graph.txt "matching_cost" line: kind, the two
// linked submap indices, and (as a format extension beyond the bare
// kind/i/j triple §4.6 names) the voxel level, needed to pick the right
// VoxelMap out of prior.VoxelMaps on reload. A reader that only understands
// the first four fields still gets a working kind/i/j triple.
type matchingCostDescriptor struct {
	Kind  string
	I, J  int
	Level int
}

func keyIndex(k graph.Key) int { return int(k.Index()) }

// Save implements §4.6's save(path): graph.txt, graph.bin, values.bin, a
// config/ snapshot, and one NNNNNN/ directory per submap.
func (g *GlobalMapping) Save(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return errors.Wrap(err, "save")
	}

	submaps := g.submaps.All()
	var matching []matchingCostDescriptor
	var serializableFactors []factorDTO

	for _, f := range g.smoother.Factors() {
		switch v := f.(type) {
		case *GICPFactor:
			matching = append(matching, matchingCostDescriptor{Kind: "gicp", I: keyIndex(v.KeyA), J: keyIndex(v.KeyB)})
		case *VGICPFactor:
			kind := "vgicp"
			if v.GPU {
				kind = "vgicp_gpu"
			}
			matching = append(matching, matchingCostDescriptor{Kind: kind, I: keyIndex(v.KeyA), J: keyIndex(v.KeyB), Level: v.Level})
		default:
			if fd, ok := encodeFactor(f); ok {
				serializableFactors = append(serializableFactors, fd)
			}
		}
	}

	if err := writeGraphTxt(filepath.Join(path, "graph.txt"), len(submaps), 2*len(submaps), matching); err != nil {
		return errors.Wrap(err, "save: graph.txt")
	}

	if err := writeGob(filepath.Join(path, "graph.bin"), graphFile{Factors: serializableFactors}); err != nil {
		return errors.Wrap(err, "save: graph.bin")
	}

	values := g.smoother.Values()
	var vf valuesFile
	for _, k := range values.Keys() {
		vf.Vars = append(vf.Vars, encodeValue(k, values.MustGet(k)))
	}
	if err := writeGob(filepath.Join(path, "values.bin"), vf); err != nil {
		return errors.Wrap(err, "save: values.bin")
	}

	for i, s := range submaps {
		dir := filepath.Join(path, fmt.Sprintf("%06d", i))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "save: submap %d", i)
		}
		if err := writeGob(filepath.Join(dir, "submap.bin"), saveSubmapDTO(s)); err != nil {
			return errors.Wrapf(err, "save: submap %d", i)
		}
	}

	configDir := filepath.Join(path, "config")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return errors.Wrap(err, "save: config")
	}
	buf, err := json.MarshalIndent(g.cfg, "", "  ")
	if err != nil {
		return errors.Wrap(err, "save: config")
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.json"), buf, 0o644); err != nil {
		return errors.Wrap(err, "save: config")
	}

	return nil
}

func writeGob(path string, v interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(v)
}

func writeGraphTxt(path string, numSubmaps, numAllFrames int, matching []matchingCostDescriptor) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "num_submaps %d\n", numSubmaps)
	fmt.Fprintf(w, "num_all_frames %d\n", numAllFrames)
	fmt.Fprintf(w, "num_matching_cost_factors %d\n", len(matching))
	for _, m := range matching {
		fmt.Fprintf(w, "matching_cost %s %d %d %d\n", m.Kind, m.I, m.J, m.Level)
	}
	return w.Flush()
}

type graphHeader struct {
	numSubmaps   int
	numAllFrames int
}

func readGraphTxt(path string) (graphHeader, []matchingCostDescriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return graphHeader{}, nil, err
	}
	defer f.Close()

	var hdr graphHeader
	var matching []matchingCostDescriptor
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "num_submaps":
			hdr.numSubmaps, _ = strconv.Atoi(fields[1])
		case "num_all_frames":
			hdr.numAllFrames, _ = strconv.Atoi(fields[1])
		case "num_matching_cost_factors":
			// informational only; readGraphTxt returns the actual parsed count.
		case "matching_cost":
			if len(fields) < 4 {
				continue
			}
			i, _ := strconv.Atoi(fields[2])
			j, _ := strconv.Atoi(fields[3])
			level := 0
			if len(fields) >= 5 {
				level, _ = strconv.Atoi(fields[4])
			}
			matching = append(matching, matchingCostDescriptor{Kind: fields[1], I: i, J: j, Level: level})
		}
	}
	if err := scanner.Err(); err != nil {
		return graphHeader{}, nil, err
	}
	return hdr, matching, nil
}

func loadSubmapDir(dir string) (*Submap, error) {
	f, err := os.Open(filepath.Join(dir, "submap.bin"))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var dto submapDTO
	if err := gob.NewDecoder(f).Decode(&dto); err != nil {
		return nil, err
	}
	return dto.toSubmap(), nil
}

// loadGraphAndValues decodes graph.bin/values.bin. A factor whose Variant is
// unrecognized decodes to a nil graph.Factor (a "null factor" per §4.6 step
// 5), left in the slice for the caller to strip.
func loadGraphAndValues(path string) (*graph.Values, []graph.Factor, error) {
	vf, err := os.Open(filepath.Join(path, "values.bin"))
	if err != nil {
		return nil, nil, err
	}
	defer vf.Close()
	var storedValues valuesFile
	if err := gob.NewDecoder(vf).Decode(&storedValues); err != nil {
		return nil, nil, err
	}

	gf, err := os.Open(filepath.Join(path, "graph.bin"))
	if err != nil {
		return nil, nil, err
	}
	defer gf.Close()
	var storedGraph graphFile
	if err := gob.NewDecoder(gf).Decode(&storedGraph); err != nil {
		return nil, nil, err
	}

	values := graph.NewValues()
	for _, v := range storedValues.Vars {
		switch v.Kind {
		case variablePose:
			values.Insert(v.Key, graph.PoseVariable{Pose: v.Pose.toPose()})
		case variableVec3:
			values.Insert(v.Key, graph.Vector3Variable{Value: v.Vec3})
		case variableVec6:
			values.Insert(v.Key, graph.Vector6Variable{Value: v.Vec6})
		}
	}

	factors := make([]graph.Factor, len(storedGraph.Factors))
	for i, fd := range storedGraph.Factors {
		factors[i] = decodeFactor(fd)
	}
	return values, factors, nil
}

func reconstructMatchingCostFactor(desc matchingCostDescriptor, submaps *Index) (graph.Factor, bool) {
	prior := submaps.Get(desc.I)
	cur := submaps.Get(desc.J)
	if prior == nil || cur == nil {
		return nil, false
	}
	switch desc.Kind {
	case "gicp":
		return &GICPFactor{
			KeyA: graph.X(uint64(desc.I)), KeyB: graph.X(uint64(desc.J)),
			CloudA: prior.MergedKeyframe, CloudB: cur.MergedKeyframe,
			MaxCorrespondence: 0.5, SqrtInfo: 1.0,
		}, true
	case "vgicp", "vgicp_gpu":
		if desc.Level < 0 || desc.Level >= len(prior.VoxelMaps) {
			return nil, false
		}
		return &VGICPFactor{
			KeyA: graph.X(uint64(desc.I)), KeyB: graph.X(uint64(desc.J)),
			VoxelMap: prior.VoxelMaps[desc.Level], Cloud: cur.SubsampledCloud, Level: desc.Level,
			GPU: desc.Kind == "vgicp_gpu", SqrtInfo: sqrtInfoFor(vgicpPrecision),
		}, true
	default:
		return nil, false
	}
}

// Load implements §4.6's load(path): parse graph.txt, reload and rebuild
// every submap, deserialize graph.bin/values.bin (tolerating failure),
// reconstruct matching-cost factors, strip null factors, run recover_graph
// if anything was missing, and submit the whole result to the smoother in
// one update.
func Load(path string, cfg Config, logger logging.Logger) (*GlobalMapping, error) {
	g := New(cfg, logger)

	hdr, matching, err := readGraphTxt(filepath.Join(path, "graph.txt"))
	if err != nil {
		return nil, errors.Wrap(err, "load: graph.txt")
	}

	for i := 0; i < hdr.numSubmaps; i++ {
		dir := filepath.Join(path, fmt.Sprintf("%06d", i))
		s, err := loadSubmapDir(dir)
		if err != nil {
			return nil, errors.Wrapf(err, "load: submap %d", i)
		}
		buildVoxelMaps(s, cfg)
		g.submaps.Append(s)
	}

	needsRecover := false
	values, factors, err := loadGraphAndValues(path)
	if err != nil {
		g.logger.Warnw("failed to deserialize graph/values, scheduling recovery", "error", err)
		needsRecover = true
		values = graph.NewValues()
		factors = nil
	}

	for _, desc := range matching {
		f, ok := reconstructMatchingCostFactor(desc, &g.submaps)
		if !ok {
			g.logger.Warnw("unrecognized matching-cost descriptor, skipping", "kind", desc.Kind, "i", desc.I, "j", desc.J)
			continue
		}
		factors = append(factors, f)
	}

	cleaned := factors[:0]
	for _, f := range factors {
		if f == nil {
			needsRecover = true
			continue
		}
		cleaned = append(cleaned, f)
	}
	factors = cleaned

	if needsRecover {
		g.logger.Warnw("recovering graph after incomplete load")
		recFactors, recValues := recoverGraph(values, factors, &g.submaps, cfg)
		factors = append(factors, recFactors...)
		values.Merge(recValues)
		g.needsRecover = true
	}

	if err := g.update(values, factors); err != nil {
		return nil, errors.Wrap(err, "load: final update")
	}
	g.submaps.RefreshPoses(g.smoother.Values())
	return g, nil
}

// recoverGraph implements §4.6's recover_graph: infer IMU mode, find what
// connectivity already exists, and emit whatever priors/between-factors are
// missing to restore the invariants insert_submap would have established.
func recoverGraph(values *graph.Values, factors []graph.Factor, submaps *Index, cfg Config) ([]graph.Factor, *graph.Values) {
	newValues := graph.NewValues()
	var newFactors []graph.Factor

	imuMode := false
	for _, k := range values.Keys() {
		switch k.Symbol() {
		case graph.SymbolE, graph.SymbolV, graph.SymbolB:
			imuMode = true
		}
	}
	for _, f := range factors {
		if f != nil && f.Kind() == graph.KindIMU {
			imuMode = true
		}
	}

	neighbors := make(map[graph.Key]map[graph.Key]bool)
	link := func(a, b graph.Key) {
		if neighbors[a] == nil {
			neighbors[a] = make(map[graph.Key]bool)
		}
		neighbors[a][b] = true
		if neighbors[b] == nil {
			neighbors[b] = make(map[graph.Key]bool)
		}
		neighbors[b][a] = true
	}
	dampedX0 := false
	biasPriors := make(map[graph.Key]bool)
	for _, f := range factors {
		if f == nil {
			continue
		}
		keys := f.Keys()
		if len(keys) == 2 {
			link(keys[0], keys[1])
		}
		if f.Kind() == graph.KindDamping && len(keys) == 1 && keys[0] == graph.X(0) {
			dampedX0 = true
		}
		if pb, ok := f.(*PriorBiasFactor); ok {
			biasPriors[pb.Key] = true
		}
	}

	n := submaps.Len()

	if n > 0 && !dampedX0 {
		newFactors = append(newFactors, &DampingFactor{
			Key: graph.X(0), Target: submaps.Get(0).TWorldOrigin, SqrtInfo: sqrtInfoFor(cfg.InitPoseDampingScale),
		})
	}

	hasValue := func(k graph.Key) bool { return values.Has(k) || newValues.Has(k) }

	for k := 0; k < n; k++ {
		xk := graph.X(uint64(k))
		if !hasValue(xk) {
			newValues.Insert(xk, graph.PoseVariable{Pose: submaps.Get(k).TWorldOrigin})
		}
	}

	for k := 0; k < n-1; k++ {
		xk, xk1 := graph.X(uint64(k)), graph.X(uint64(k+1))
		if neighbors[xk][xk1] {
			continue
		}
		delta := spatialmath.PoseBetween(submaps.Get(k).TWorldOrigin, submaps.Get(k+1).TWorldOrigin)
		newFactors = append(newFactors, &BetweenPoseFactor{KeyA: xk, KeyB: xk1, Delta: delta, SqrtInfo: sqrtInfoFor(tightPrecision)})
		link(xk, xk1)
	}

	if !imuMode {
		return newFactors, newValues
	}

	ensureEndpoint := func(idx uint64, frame EndpointFrame, xKey graph.Key, originDelta spatialmath.Pose) {
		e, v, b := graph.E(idx), graph.V(idx), graph.B(idx)
		if !hasValue(e) {
			newValues.Insert(e, graph.PoseVariable{Pose: frame.Pose})
		}
		if !hasValue(v) {
			newValues.Insert(v, graph.Vector3Variable{Value: r3.Vector{X: frame.Velocity[0], Y: frame.Velocity[1], Z: frame.Velocity[2]}})
		}
		if !hasValue(b) {
			newValues.Insert(b, graph.Vector6Variable{Value: frame.Bias})
		}
		if !biasPriors[b] {
			newFactors = append(newFactors, &PriorBiasFactor{Key: b, Target: frame.Bias, SqrtInfo: sqrtInfoFor(tightPrecision)})
			biasPriors[b] = true
		}
		if !neighbors[xKey][e] {
			newFactors = append(newFactors, &BetweenPoseFactor{KeyA: xKey, KeyB: e, Delta: originDelta, SqrtInfo: sqrtInfoFor(tightPrecision)})
			link(xKey, e)
		}
		if !neighbors[xKey][v] {
			newFactors = append(newFactors, &RotateVectorFactor{PoseKey: xKey, VelKey: v, SqrtInfo: sqrtInfoFor(tightPrecision)})
			link(xKey, v)
		}
	}

	for k := 0; k < n; k++ {
		s := submaps.Get(k)
		xKey := graph.X(uint64(k))
		if k == 0 {
			ensureEndpoint(1, s.OptimLast, xKey, s.TOriginEndpointR)
			continue
		}
		leftIdx, rightIdx := uint64(2*k), uint64(2*k+1)
		ensureEndpoint(leftIdx, s.OptimFirst, xKey, s.TOriginEndpointL)
		ensureEndpoint(rightIdx, s.OptimLast, xKey, s.TOriginEndpointR)

		prevRightIdx := uint64(2*(k-1) + 1)
		bLeft, bPrevRight := graph.B(leftIdx), graph.B(prevRightIdx)
		if !neighbors[bPrevRight][bLeft] {
			newFactors = append(newFactors, &BetweenBiasFactor{KeyA: bPrevRight, KeyB: bLeft, SqrtInfo: sqrtInfoFor(tightPrecision)})
			link(bPrevRight, bLeft)
		}
	}

	return newFactors, newValues
}

// NeedsRecover reports whether the most recent Load had to run recover_graph
// because graph.bin/values.bin could not be fully restored.
func (g *GlobalMapping) NeedsRecover() bool { return g.needsRecover }
