package model

import "time"

type Channel string

const (
	ChannelOxygen      Channel = "oxygen"
	ChannelTemperature Channel = "temperature"
	ChannelFood        Channel = "food"
	ChannelPower       Channel = "power"
	ChannelSleep       Channel = "sleep"
	ChannelWellness    Channel = "wellness"
)

// Channels lists every alerting channel in evaluation order.
var Channels = []Channel{
	ChannelOxygen,
	ChannelTemperature,
	ChannelFood,
	ChannelPower,
	ChannelSleep,
	ChannelWellness,
}

func ParseChannel(s string) (Channel, bool) {
	for _, ch := range Channels {
		if string(ch) == s {
			return ch, true
		}
	}
	return "", false
}

type Severity string

const (
	SeverityNormal   Severity = "normal"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

type Wellness struct {
	Stress float64 `json:"stress"`
	Mood   float64 `json:"mood"`
	Energy float64 `json:"energy"`
	Focus  float64 `json:"focus"`
	Health float64 `json:"health"`
}

func (w Wellness) Mean() float64 {
	return (w.Stress + w.Mood + w.Energy + w.Focus + w.Health) / 5
}

func (w Wellness) Values() []float64 {
	return []float64{w.Stress, w.Mood, w.Energy, w.Focus, w.Health}
}

type Sample struct {
	Tick        float64  `json:"tick"`
	Oxygen      float64  `json:"oxygen"`
	Temperature float64  `json:"temperature"`
	Food        float64  `json:"food"`
	PowerUsed   float64  `json:"powerUsed"`
	Sleep       float64  `json:"sleep"`
	Wellness    Wellness `json:"wellness"`
}

// OverrideMap marks channels whose alerts are suppressed by an admin.
// Absent channels are not suppressed.
type OverrideMap map[Channel]bool

func (o OverrideMap) Suppressed(ch Channel) bool {
	if o == nil {
		return false
	}
	return o[ch]
}

func (o OverrideMap) Clone() OverrideMap {
	out := make(OverrideMap, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

type ActiveAlert struct {
	Channel    Channel  `json:"channel,omitempty"`
	Message    string   `json:"message"`
	Severity   Severity `json:"severity"`
	Value      float64  `json:"value"`
	Overridden bool     `json:"overridden"`
}

type AlertLogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Channel   Channel   `json:"type"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	User      string    `json:"user"`
}

type CommandLogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command"`
	Response  string    `json:"response"`
	User      string    `json:"user"`
}

type ChatMessage struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type Privilege string

const (
	PrivilegeRead     Privilege = "read"
	PrivilegeWrite    Privilege = "write"
	PrivilegeResearch Privilege = "research"
	PrivilegeMedical  Privilege = "medical"
	PrivilegeAdmin    Privilege = "admin"
)

type CrewStats struct {
	LoginCount       int        `json:"loginCount"`
	TotalLoginTime   int64      `json:"totalLoginTime"`
	CommandsExecuted int        `json:"commandsExecuted"`
	LastLogin        *time.Time `json:"lastLogin"`
}

type CrewMember struct {
	Name       string      `json:"name"`
	Role       string      `json:"role"`
	Privileges []Privilege `json:"privileges"`
	Alerts     []string    `json:"alerts"`
	Stats      CrewStats   `json:"stats"`
}

func (m CrewMember) Has(p Privilege) bool {
	for _, have := range m.Privileges {
		if have == p {
			return true
		}
	}
	return false
}

type WellnessScores struct {
	Stress int `json:"stress"`
	Mood   int `json:"mood"`
	Energy int `json:"energy"`
	Focus  int `json:"focus"`
	Health int `json:"health"`
}

func (s WellnessScores) Mean() float64 {
	return float64(s.Stress+s.Mood+s.Energy+s.Focus+s.Health) / 5
}

type CheckIn struct {
	WellnessScores
	Timestamp time.Time `json:"timestamp"`
	User      string    `json:"user"`
}

type WellnessRecord struct {
	History []CheckIn      `json:"history"`
	Current WellnessScores `json:"current"`
}

type Bay struct {
	Index    int    `json:"index"`
	Occupied bool   `json:"occupied"`
	Occupant string `json:"occupant,omitempty"`
}
