// Package scene is the server-side half of the 3D map. It keeps camera and
// marker state, answers building picks and paces transitions, and
// publishes each change for the browser renderer to draw.
package scene

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/playperu/cityescape/internal/cityescape"
)

type Camera struct {
	Target cityescape.LatLng       `json:"target"`
	Offset cityescape.CameraOffset `json:"offset"`
}

type EventKind string

const (
	EventReady        EventKind = "scene_ready"
	EventCamera       EventKind = "camera"
	EventMarker       EventKind = "marker"
	EventMarkersClear EventKind = "markers_clear"
	EventTransition   EventKind = "transition"
	EventWeather      EventKind = "weather"
)

type Event struct {
	Kind       EventKind             `json:"kind"`
	StageID    int                   `json:"stageId,omitempty"`
	Camera     *Camera               `json:"camera,omitempty"`
	Transition cityescape.Transition `json:"transition,omitempty"`
	Weather    cityescape.Weather    `json:"weather,omitempty"`
}

type Config struct {
	Flight     time.Duration
	Transition time.Duration
	Weather    time.Duration
	// PickRadius is the distance in metres within which a pick hits a
	// building.
	PickRadius float64
}

type Scene struct {
	cfg       Config
	stages    []cityescape.Stage
	publish   func(Event)
	buildings []cityescape.Building

	mu      sync.Mutex
	ready   bool
	camera  Camera
	markers []int
}

// New returns a scene over stages. publish may be nil.
func New(stages []cityescape.Stage, cfg Config, publish func(Event)) *Scene {
	if cfg.PickRadius <= 0 {
		cfg.PickRadius = 60
	}
	if publish == nil {
		publish = func(Event) {}
	}
	return &Scene{cfg: cfg, stages: stages, publish: publish}
}

// Initialize indexes building data and announces the scene.
func (s *Scene) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var all []cityescape.Building
	for _, st := range s.stages {
		all = append(all, st.Buildings...)
	}

	s.mu.Lock()
	s.buildings = all
	s.ready = true
	s.markers = nil
	s.mu.Unlock()

	s.publish(Event{Kind: EventReady})
	return nil
}

// FlyTo moves the camera to the stage and waits for the flight.
func (s *Scene) FlyTo(ctx context.Context, stage cityescape.Stage) error {
	cam := Camera{Target: stage.Location, Offset: stage.Camera}
	s.mu.Lock()
	s.camera = cam
	s.mu.Unlock()

	s.publish(Event{Kind: EventCamera, StageID: stage.ID, Camera: &cam})
	return wait(ctx, s.cfg.Flight)
}

func (s *Scene) AddMarker(stage cityescape.Stage) {
	s.mu.Lock()
	s.markers = append(s.markers, stage.ID)
	s.mu.Unlock()
	s.publish(Event{Kind: EventMarker, StageID: stage.ID})
}

func (s *Scene) ClearMarkers() {
	s.mu.Lock()
	s.markers = nil
	s.mu.Unlock()
	s.publish(Event{Kind: EventMarkersClear})
}

func (s *Scene) Transition(ctx context.Context, kind cityescape.Transition) error {
	s.publish(Event{Kind: EventTransition, Transition: kind})
	return wait(ctx, s.cfg.Transition)
}

func (s *Scene) ChangeWeather(ctx context.Context, w cityescape.Weather) error {
	s.publish(Event{Kind: EventWeather, Weather: w})
	return wait(ctx, s.cfg.Weather)
}

// Pick returns the building nearest pos within the pick radius.
func (s *Scene) Pick(pos cityescape.LatLng) (cityescape.Building, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	best := -1
	bestDist := s.cfg.PickRadius
	for i, b := range s.buildings {
		if d := Distance(pos, b.Location); d <= bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return cityescape.Building{}, false
	}
	return s.buildings[best], true
}

func (s *Scene) Camera() Camera {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.camera
}

func (s *Scene) Markers() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.markers...)
}

const earthRadius = 6371000.0

// Distance is the haversine distance in metres.
func Distance(a, b cityescape.LatLng) float64 {
	rad := math.Pi / 180
	dLat := (b.Lat - a.Lat) * rad
	dLng := (b.Lng - a.Lng) * rad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*rad)*math.Cos(b.Lat*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadius * math.Asin(math.Sqrt(h))
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
