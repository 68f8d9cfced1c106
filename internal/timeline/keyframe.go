package timeline

import (
	"fmt"
	"math"
	"sort"
)

// Property is one of the fixed set of animatable clip properties.
type Property int

const (
	PropX Property = iota
	PropY
	PropScale
	PropRotation
	PropOpacity
	PropVolume
)

// Properties lists every animatable property in declaration order.
var Properties = [...]Property{PropX, PropY, PropScale, PropRotation, PropOpacity, PropVolume}

var propertyNames = [...]string{"x", "y", "scale", "rotation", "opacity", "volume"}

func (p Property) String() string {
	if p < 0 || int(p) >= len(propertyNames) {
		return fmt.Sprintf("property(%d)", int(p))
	}
	return propertyNames[p]
}

// ParseProperty maps a property name to its Property.
func ParseProperty(name string) (Property, error) {
	for i, n := range propertyNames {
		if n == name {
			return Property(i), nil
		}
	}
	return 0, fmt.Errorf("unknown animatable property %q", name)
}

func (p Property) MarshalText() ([]byte, error) {
	if p < 0 || int(p) >= len(propertyNames) {
		return nil, fmt.Errorf("unknown animatable property %d", int(p))
	}
	return []byte(propertyNames[p]), nil
}

func (p *Property) UnmarshalText(b []byte) error {
	v, err := ParseProperty(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

type Keyframe struct {
	Time  float64 `json:"time"`
	Value float64 `json:"value"`
}

// KeyframeSet holds one time-ordered keyframe list per animatable property.
type KeyframeSet struct {
	X        []Keyframe `json:"x,omitempty"`
	Y        []Keyframe `json:"y,omitempty"`
	Scale    []Keyframe `json:"scale,omitempty"`
	Rotation []Keyframe `json:"rotation,omitempty"`
	Opacity  []Keyframe `json:"opacity,omitempty"`
	Volume   []Keyframe `json:"volume,omitempty"`
}

func (ks *KeyframeSet) slot(p Property) *[]Keyframe {
	switch p {
	case PropX:
		return &ks.X
	case PropY:
		return &ks.Y
	case PropScale:
		return &ks.Scale
	case PropRotation:
		return &ks.Rotation
	case PropOpacity:
		return &ks.Opacity
	case PropVolume:
		return &ks.Volume
	}
	return nil
}

func (ks KeyframeSet) Get(p Property) []Keyframe {
	if s := ks.slot(p); s != nil {
		return *s
	}
	return nil
}

// Set replaces the keyframes for p, normalizing order and duplicates.
func (ks *KeyframeSet) Set(p Property, kfs []Keyframe) {
	if s := ks.slot(p); s != nil {
		*s = NormalizeKeyframes(kfs)
	}
}

func (ks KeyframeSet) Empty() bool {
	for _, p := range Properties {
		if len(ks.Get(p)) > 0 {
			return false
		}
	}
	return true
}

func (ks KeyframeSet) clone() KeyframeSet {
	var out KeyframeSet
	for _, p := range Properties {
		if src := ks.Get(p); src != nil {
			*out.slot(p) = append([]Keyframe(nil), src...)
		}
	}
	return out
}

// Interpolate evaluates a keyframe list at time t. An empty list yields
// defaultValue; times outside the list clamp to the first or last value;
// times between two keyframes are interpolated linearly.
func Interpolate(keyframes []Keyframe, t, defaultValue float64) float64 {
	n := len(keyframes)
	if n == 0 {
		return defaultValue
	}
	if n == 1 || t <= keyframes[0].Time {
		return keyframes[0].Value
	}
	last := keyframes[n-1]
	if t >= last.Time {
		return last.Value
	}

	// First index whose time is > t; its predecessor brackets t from below.
	i := sort.Search(n, func(i int) bool { return keyframes[i].Time > t })
	prev, next := keyframes[i-1], keyframes[i]
	span := next.Time - prev.Time
	if span <= 0 {
		return prev.Value
	}
	return prev.Value + (next.Value-prev.Value)*(t-prev.Time)/span
}

// NormalizeKeyframes returns a copy sorted by time with duplicate times
// collapsed; the later entry for a time wins.
func NormalizeKeyframes(kfs []Keyframe) []Keyframe {
	if len(kfs) == 0 {
		return nil
	}
	out := append([]Keyframe(nil), kfs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	w := 0
	for _, kf := range out {
		if w > 0 && out[w-1].Time == kf.Time {
			out[w-1] = kf
			continue
		}
		out[w] = kf
		w++
	}
	return out[:w]
}

// ToggleKeyframe removes the keyframe within eps of t if there is one,
// otherwise inserts {t, value} in order. The input slice is not modified.
func ToggleKeyframe(kfs []Keyframe, t, value, eps float64) []Keyframe {
	for i, kf := range kfs {
		if math.Abs(kf.Time-t) <= eps {
			out := make([]Keyframe, 0, len(kfs)-1)
			out = append(out, kfs[:i]...)
			out = append(out, kfs[i+1:]...)
			if len(out) == 0 {
				return nil
			}
			return out
		}
	}
	out := append(append([]Keyframe(nil), kfs...), Keyframe{Time: t, Value: value})
	return NormalizeKeyframes(out)
}

func keyframesOrdered(kfs []Keyframe) bool {
	for i := 1; i < len(kfs); i++ {
		if kfs[i].Time <= kfs[i-1].Time {
			return false
		}
	}
	return true
}
