// Package cityescape defines the core domain types of the escape game.
// It has no dependencies outside the standard library.
package cityescape

import "time"

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// CameraOffset positions the viewpoint relative to a stage's location.
type CameraOffset struct {
	Heading  float64 `json:"heading"`
	Pitch    float64 `json:"pitch"`
	Range    float64 `json:"range"`
	Altitude float64 `json:"altitude"`
}

// Building is scannable building data a player can inspect on the map.
type Building struct {
	Name     string  `json:"name"`
	Use      string  `json:"use,omitempty"`
	Height   float64 `json:"height,omitempty"`
	Year     int     `json:"year,omitempty"`
	Location LatLng  `json:"location"`
}

type Stage struct {
	ID             int          `json:"id"`
	Name           string       `json:"name"`
	NameAlt        string       `json:"nameAlt"`
	Difficulty     int          `json:"difficulty"`
	Location       LatLng       `json:"location"`
	Camera         CameraOffset `json:"camera"`
	Narration      string       `json:"narration"`
	PuzzleContext  string       `json:"puzzleContext"`
	FallbackPuzzle string       `json:"fallbackPuzzle,omitempty"`
	Buildings      []Building   `json:"buildings,omitempty"`
}

// DisplayName renders the stage name with its alternate-language name.
func (s Stage) DisplayName() string {
	if s.NameAlt == "" {
		return s.Name
	}
	return s.Name + " (" + s.NameAlt + ")"
}

// Summary is the final result of a completed run.
type Summary struct {
	Elapsed       time.Duration `json:"elapsed"`
	HintsUsed     int           `json:"hintsUsed"`
	StagesCleared int           `json:"stagesCleared"`
	StageCount    int           `json:"stageCount"`
	Rank          string        `json:"rank"`
	Story         string        `json:"story"`
}

// Transition names a full-screen visual transition.
type Transition string

const (
	TransitionOut   Transition = "warp_out"
	TransitionIn    Transition = "warp_in"
	TransitionFinal Transition = "final"
)

// Weather names a sky and lighting state.
type Weather string

const (
	WeatherStorm Weather = "storm"
	WeatherDawn  Weather = "dawn"
)
