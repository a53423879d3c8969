package camera

import (
	"context"
	"encoding/xml"
	"fmt"

	"github.com/gtfodev/neolink/pkg/wire"
)

// ControlKind enumerates the supervisor's control surface (SPEC_FULL.md §4.6).
type ControlKind int

const (
	ControlLedOn ControlKind = iota
	ControlLedOff
	ControlIrAuto
	ControlIrOn
	ControlIrOff
	ControlReboot
	ControlPtzMove
	ControlPtzPreset
	ControlPtzAssign
	ControlZoom
	ControlPirOn
	ControlPirOff
	ControlFloodlightOn
	ControlFloodlightOff
	ControlFloodlightTasksOn
	ControlFloodlightTasksOff
	ControlSiren
	ControlWakeup
)

// ControlRequest is one control command; only the fields relevant to Kind
// are read.
type ControlRequest struct {
	Kind ControlKind

	PtzDirection string
	PtzSpeed     int
	PresetID     int
	PresetName   string
	ZoomFactor   float64
	WakeupMins   int
}

// QueryKind enumerates the supervisor's read-only query surface.
type QueryKind int

const (
	QueryBattery QueryKind = iota
	QueryPir
	QueryPtzPresets
	QueryPreview
	QueryFloodlightStatus
)

// xml request/response shapes for each control/query op. Kept minimal:
// only the fields the supervisor actually reads or writes.
type ledControl struct {
	XMLName xml.Name `xml:"LedControl"`
	State   int      `xml:"state"`
}

type irControl struct {
	XMLName xml.Name `xml:"IrLights"`
	State   string   `xml:"state"`
}

type ptzControl struct {
	XMLName xml.Name `xml:"PtzControl"`
	Command string   `xml:"command"`
	Speed   int      `xml:"speed"`
}

type ptzPreset struct {
	XMLName xml.Name `xml:"PtzPreset"`
	ID      int      `xml:"id"`
	Name    string   `xml:"name,omitempty"`
}

type zoomControl struct {
	XMLName xml.Name `xml:"ZoomFocus"`
	Command string   `xml:"command"`
	Pos     int      `xml:"pos"`
}

type pirControl struct {
	XMLName xml.Name `xml:"PirAlarm"`
	Enable  int      `xml:"enable"`
}

type floodlightControl struct {
	XMLName xml.Name `xml:"FloodlightManual"`
	Status  int      `xml:"status"`
}

type floodlightTaskControl struct {
	XMLName xml.Name `xml:"FloodlightTask"`
	Enable  int      `xml:"enable"`
}

type sirenControl struct {
	XMLName xml.Name `xml:"Siren"`
}

type wakeupControl struct {
	XMLName xml.Name `xml:"Wakeup"`
	Minutes int      `xml:"minutes"`
}

type batteryInfo struct {
	XMLName xml.Name `xml:"BatteryInfo"`
	Percent int      `xml:"batteryPercent"`
	Voltage float64  `xml:"voltage"`
}

// ParseBatteryInfo decodes a QueryBattery response payload.
func ParseBatteryInfo(payload []byte) (percent int, voltage float64, err error) {
	var info batteryInfo
	if err := xml.Unmarshal(payload, &info); err != nil {
		return 0, 0, fmt.Errorf("camera: %w: %v", wire.ErrSchema, err)
	}
	return info.Percent, info.Voltage, nil
}

func boolToState(on bool) int {
	if on {
		return 1
	}
	return 0
}

// buildControlPayload maps a ControlRequest to its message id and XML body.
func buildControlPayload(req ControlRequest) (msgID uint32, payload []byte, err error) {
	var body any
	switch req.Kind {
	case ControlLedOn:
		msgID, body = wire.MsgIDLedControl, ledControl{State: 1}
	case ControlLedOff:
		msgID, body = wire.MsgIDLedControl, ledControl{State: 0}
	case ControlIrAuto:
		msgID, body = wire.MsgIDIRControl, irControl{State: "auto"}
	case ControlIrOn:
		msgID, body = wire.MsgIDIRControl, irControl{State: "on"}
	case ControlIrOff:
		msgID, body = wire.MsgIDIRControl, irControl{State: "off"}
	case ControlReboot:
		msgID, payload = wire.MsgIDReboot, []byte{}
		return msgID, payload, nil
	case ControlPtzMove:
		msgID, body = wire.MsgIDPtzControl, ptzControl{Command: req.PtzDirection, Speed: req.PtzSpeed}
	case ControlPtzPreset:
		msgID, body = wire.MsgIDPtzControl, ptzPreset{ID: req.PresetID}
	case ControlPtzAssign:
		msgID, body = wire.MsgIDPtzControl, ptzPreset{ID: req.PresetID, Name: req.PresetName}
	case ControlZoom:
		msgID, body = wire.MsgIDPtzControl, zoomControl{Command: "zoom", Pos: int(req.ZoomFactor * 100)}
	case ControlPirOn:
		msgID, body = wire.MsgIDPirControl, pirControl{Enable: 1}
	case ControlPirOff:
		msgID, body = wire.MsgIDPirControl, pirControl{Enable: 0}
	case ControlFloodlightOn:
		msgID, body = wire.MsgIDFloodlight, floodlightControl{Status: 1}
	case ControlFloodlightOff:
		msgID, body = wire.MsgIDFloodlight, floodlightControl{Status: 0}
	case ControlFloodlightTasksOn:
		msgID, body = wire.MsgIDFloodlight, floodlightTaskControl{Enable: 1}
	case ControlFloodlightTasksOff:
		msgID, body = wire.MsgIDFloodlight, floodlightTaskControl{Enable: 0}
	case ControlSiren:
		msgID, body = wire.MsgIDSiren, sirenControl{}
	case ControlWakeup:
		msgID, body = wire.MsgIDWakeup, wakeupControl{Minutes: req.WakeupMins}
	default:
		return 0, nil, fmt.Errorf("camera: unknown control kind %d", req.Kind)
	}
	payload, err = xml.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("camera: marshalling control body: %w", err)
	}
	return msgID, payload, nil
}

func queryMessageID(kind QueryKind) uint32 {
	switch kind {
	case QueryBattery:
		return wire.MsgIDBattery
	case QueryPir:
		return wire.MsgIDPirControl
	case QueryPtzPresets:
		return wire.MsgIDPtzControl
	case QueryPreview:
		return wire.MsgIDSnap
	case QueryFloodlightStatus:
		return wire.MsgIDFloodlight
	default:
		return 0
	}
}

// Control submits req through the priority command queue at HIGH priority
// and issues it on the active BC session.
func (s *Supervisor) Control(ctx context.Context, req ControlRequest) error {
	return s.queue.Submit(ctx, PriorityHigh, func() error {
		msgID, payload, err := buildControlPayload(req)
		if err != nil {
			return err
		}
		sess := s.currentSession()
		if sess == nil {
			return fmt.Errorf("camera: %s: not connected", s.cfg.Name)
		}
		s.noteActivity()
		_, err = sess.Request(ctx, msgID, nil, payload)
		return err
	})
}

// Query submits a read-only query through the command queue at HIGH
// priority and returns the raw response payload for the caller to parse.
func (s *Supervisor) Query(ctx context.Context, kind QueryKind) ([]byte, error) {
	var result []byte
	err := s.queue.Submit(ctx, PriorityHigh, func() error {
		sess := s.currentSession()
		if sess == nil {
			return fmt.Errorf("camera: %s: not connected", s.cfg.Name)
		}
		s.noteActivity()
		reply, err := sess.Request(ctx, queryMessageID(kind), nil, nil)
		if err != nil {
			return err
		}
		result = reply.Payload
		return nil
	})
	return result, err
}
