package console

import (
	"encoding/json"
	"fmt"

	"lightdesk/internal/apperr"
	"lightdesk/internal/dmx"
	"lightdesk/internal/effects"
	"lightdesk/internal/midimap"
)

// Command names accepted by Dispatch.
const (
	CmdDMX             = "dmx_command"
	CmdApplyDMX        = "apply_dmx_commands"
	CmdClearAll        = "clear_all"
	CmdStartPlayback   = "start_playback"
	CmdPausePlayback   = "pause_playback"
	CmdResumePlayback  = "resume_playback"
	CmdStopPlayback    = "stop_playback"
	CmdNextCue         = "next_cue"
	CmdPrevCue         = "prev_cue"
	CmdSetMaster       = "set_master_intensity"
	CmdStartEffect     = "start_effect"
	CmdStopEffect      = "stop_effect"
	CmdStopAllEffects  = "stop_all_effects"
	CmdUpdateEffect    = "update_effect"
	CmdSaveMapping     = "save_midi_mapping"
	CmdDeleteMapping   = "delete_midi_mapping"
	CmdSetFader        = "set_executor_fader"
	CmdSetProgrammer   = "set_programmer_value"
	CmdClearProgrammer = "clear_programmer"
	CmdApplyPreset     = "apply_preset"
	CmdMIDIIn          = "midi_in"
)

type startPlaybackReq struct {
	CuelistID       string `json:"cuelist_id"`
	MasterIntensity *int   `json:"master_intensity"`
}

type valueReq struct {
	Value int `json:"value"`
}

type idReq struct {
	ID string `json:"id"`
}

type startEffectReq struct {
	Kind       effects.Kind    `json:"kind"`
	FixtureIDs []string        `json:"fixture_ids"`
	Params     json.RawMessage `json:"params"`
}

type updateEffectReq struct {
	ID     string          `json:"id"`
	Params json.RawMessage `json:"params"`
}

type faderReq struct {
	ID    string `json:"id"`
	Value int    `json:"value"`
}

type programmerReq struct {
	FixtureID string `json:"fixture_id"`
	Attribute string `json:"attribute"`
	Value     int    `json:"value"`
}

type presetReq struct {
	PresetID   string   `json:"preset_id"`
	FixtureIDs []string `json:"fixture_ids"`
	Fade       float64  `json:"fade"`
}

type midiInReq struct {
	Data []int `json:"data"`
}

func decode(payload []byte, v interface{}) error {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("payload: %v: %w", err, apperr.ErrValidation)
	}
	return nil
}

// Dispatch runs the command name with its JSON payload. A failure is also
// published on TopicError.
func (c *Console) Dispatch(name string, payload []byte) error {
	err := c.dispatch(name, payload)
	if err != nil {
		c.logger().Warnf("%s: %v", name, err)
		c.pub.Publish(TopicError, ErrorEvent{Command: name, Kind: apperr.Kind(err), Message: err.Error()})
	}
	return err
}

func (c *Console) dispatch(name string, payload []byte) error {
	switch name {
	case CmdDMX:
		var req dmx.Command
		if err := decode(payload, &req); err != nil {
			return err
		}
		return c.Channels.Write(req.Channel, req.Value, req.Fade, dmx.SourceManual)

	case CmdApplyDMX:
		var req []dmx.Command
		if err := decode(payload, &req); err != nil {
			return err
		}
		return c.Channels.WriteBatch(req, dmx.SourceManual)

	case CmdClearAll:
		c.Channels.ClearAll()
		return nil

	case CmdStartPlayback:
		var req startPlaybackReq
		if err := decode(payload, &req); err != nil {
			return err
		}
		master := c.Playback.State().MasterIntensity
		if req.MasterIntensity != nil {
			master = *req.MasterIntensity
		}
		return c.Playback.Start(req.CuelistID, master)

	case CmdPausePlayback:
		return c.Playback.Pause()

	case CmdResumePlayback:
		return c.Playback.Resume()

	case CmdStopPlayback:
		return c.Playback.Stop()

	case CmdNextCue:
		return c.Playback.Next()

	case CmdPrevCue:
		return c.Playback.Prev()

	case CmdSetMaster:
		var req valueReq
		if err := decode(payload, &req); err != nil {
			return err
		}
		return c.Playback.SetMasterIntensity(req.Value)

	case CmdStartEffect:
		var req startEffectReq
		if err := decode(payload, &req); err != nil {
			return err
		}
		p, err := effects.DecodeParams(req.Kind, req.Params)
		if err != nil {
			return err
		}
		_, err = c.Effects.Start(req.FixtureIDs, p)
		return err

	case CmdStopEffect:
		var req idReq
		if err := decode(payload, &req); err != nil {
			return err
		}
		return c.Effects.Stop(req.ID)

	case CmdStopAllEffects:
		c.Effects.StopAll()
		return nil

	case CmdUpdateEffect:
		var req updateEffectReq
		if err := decode(payload, &req); err != nil {
			return err
		}
		return c.Effects.Update(req.ID, req.Params)

	case CmdSaveMapping:
		var req midimap.Mapping
		if err := decode(payload, &req); err != nil {
			return err
		}
		if _, err := c.Mappings.Save(req); err != nil {
			return err
		}
		c.pub.Publish(TopicMappings, c.Mappings.All())
		return nil

	case CmdDeleteMapping:
		var req idReq
		if err := decode(payload, &req); err != nil {
			return err
		}
		if err := c.Mappings.Delete(req.ID); err != nil {
			return err
		}
		c.pub.Publish(TopicMappings, c.Mappings.All())
		return nil

	case CmdSetFader:
		var req faderReq
		if err := decode(payload, &req); err != nil {
			return err
		}
		_, err := c.Executors.SetFader(req.ID, req.Value)
		return err

	case CmdSetProgrammer:
		var req programmerReq
		if err := decode(payload, &req); err != nil {
			return err
		}
		_, err := c.Programmer.Set(req.FixtureID, req.Attribute, req.Value)
		return err

	case CmdClearProgrammer:
		c.Programmer.Clear()
		return nil

	case CmdApplyPreset:
		var req presetReq
		if err := decode(payload, &req); err != nil {
			return err
		}
		return c.ApplyPreset(req.PresetID, req.FixtureIDs, req.Fade)

	case CmdMIDIIn:
		var req midiInReq
		if err := decode(payload, &req); err != nil {
			return err
		}
		if len(req.Data) != 3 {
			return fmt.Errorf("midi_in needs 3 bytes, got %d: %w", len(req.Data), apperr.ErrValidation)
		}
		raw := make([]byte, 3)
		for i, b := range req.Data {
			if b < 0 || b > 255 {
				return apperr.OutOfRange("midi byte", b, 0, 255)
			}
			raw[i] = byte(b)
		}
		return c.HandleMIDI(raw)
	}
	return fmt.Errorf("command %q: %w", name, apperr.ErrUnknownKind)
}
