package session

import "time"

// Device is one client signed in under a user's refresh-token record.
// The shape mirrors the descriptor browsers send on login and refresh.
type Device struct {
	ID            string       `json:"id" bson:"id" validate:"omitempty,max=64,printascii"`
	UserAgent     UserAgent    `json:"userAgent" bson:"userAgent"`
	WindowScreen  WindowScreen `json:"windowScreen" bson:"windowScreen"`
	WebGLInfo     WebGLInfo    `json:"webGLInfo" bson:"webGLInfo"`
	HeapSizeLimit float64      `json:"heapSizeLimit,omitempty" bson:"heapSizeLimit,omitempty" validate:"gte=0"`
	RegisteredAt  time.Time    `json:"registeredAt,omitzero" bson:"registeredAt"`
}

type UserAgent struct {
	UA      string       `json:"ua" bson:"ua" validate:"max=1024"`
	Browser Browser      `json:"browser" bson:"browser"`
	Engine  NameVersion  `json:"engine" bson:"engine"`
	OS      NameVersion  `json:"os" bson:"os"`
	Device  HardwareInfo `json:"device" bson:"device"`
	CPU     CPU          `json:"cpu" bson:"cpu"`
}

type Browser struct {
	Name    string `json:"name" bson:"name" validate:"max=128"`
	Version string `json:"version" bson:"version" validate:"max=64"`
	Major   string `json:"major" bson:"major" validate:"max=16"`
}

type NameVersion struct {
	Name    string `json:"name" bson:"name" validate:"max=128"`
	Version string `json:"version" bson:"version" validate:"max=64"`
}

type HardwareInfo struct {
	Vendor string `json:"vendor" bson:"vendor" validate:"max=128"`
	Model  string `json:"model" bson:"model" validate:"max=128"`
	Type   string `json:"type" bson:"type" validate:"max=32"`
}

type CPU struct {
	Architecture string `json:"architecture" bson:"architecture" validate:"max=32"`
}

type WindowScreen struct {
	Width      int `json:"width" bson:"width" validate:"gte=0,lte=100000"`
	Height     int `json:"height" bson:"height" validate:"gte=0,lte=100000"`
	ColorDepth int `json:"colorDepth" bson:"colorDepth" validate:"gte=0,lte=128"`
}

type WebGLInfo struct {
	Vendor   string `json:"vendor" bson:"vendor" validate:"max=256"`
	Renderer string `json:"renderer" bson:"renderer" validate:"max=256"`
	Version  string `json:"version" bson:"version" validate:"max=128"`
}

// Traits is the projection of a Device used for similarity matching when
// its identifier is unknown: the agent OS and CPU, the screen geometry, and
// the graphics adapter signature.
type Traits struct {
	OSName          string
	OSVersion       string
	CPUArchitecture string
	ScreenWidth     int
	ScreenHeight    int
	ColorDepth      int
	WebGLVendor     string
	WebGLRenderer   string
	WebGLVersion    string
}

// Traits projects d onto its matching fields.
func (d Device) Traits() Traits {
	return Traits{
		OSName:          d.UserAgent.OS.Name,
		OSVersion:       d.UserAgent.OS.Version,
		CPUArchitecture: d.UserAgent.CPU.Architecture,
		ScreenWidth:     d.WindowScreen.Width,
		ScreenHeight:    d.WindowScreen.Height,
		ColorDepth:      d.WindowScreen.ColorDepth,
		WebGLVendor:     d.WebGLInfo.Vendor,
		WebGLRenderer:   d.WebGLInfo.Renderer,
		WebGLVersion:    d.WebGLInfo.Version,
	}
}

// IsZero reports whether the projection carries no information.
func (t Traits) IsZero() bool { return t == Traits{} }

// document renders t in the nested shape devices are stored in, for stores
// that match by containment.
func (t Traits) document() map[string]any {
	return map[string]any{
		"userAgent": map[string]any{
			"os":  map[string]any{"name": t.OSName, "version": t.OSVersion},
			"cpu": map[string]any{"architecture": t.CPUArchitecture},
		},
		"windowScreen": map[string]any{
			"width":      t.ScreenWidth,
			"height":     t.ScreenHeight,
			"colorDepth": t.ColorDepth,
		},
		"webGLInfo": map[string]any{
			"vendor":   t.WebGLVendor,
			"renderer": t.WebGLRenderer,
			"version":  t.WebGLVersion,
		},
	}
}

// DeviceMatcher selects a device inside a user's record. Exactly one field
// must be set.
type DeviceMatcher struct {
	ID     string
	Traits *Traits
}

// ByID matches the device with identifier id.
func ByID(id string) DeviceMatcher { return DeviceMatcher{ID: id} }

// ByTraits matches the first device whose projection equals t.
func ByTraits(t Traits) DeviceMatcher { return DeviceMatcher{Traits: &t} }

func (m DeviceMatcher) matches(d Device) bool {
	if m.ID != "" {
		return d.ID == m.ID
	}
	return m.Traits != nil && d.Traits() == *m.Traits
}

func (m DeviceMatcher) valid() bool {
	return (m.ID != "") != (m.Traits != nil)
}
