package diarize

import (
	"fmt"
	"strconv"
	"time"

	"github.com/haivivi/diarize/pkg/speaker"
)

// Counters tracks pipeline activity since the engine was created.
type Counters struct {
	Chunks             int64 `json:"chunks" yaml:"chunks"`
	Speech             int64 `json:"speech" yaml:"speech"`
	TooShort           int64 `json:"too_short" yaml:"too_short"`
	Admitted           int64 `json:"admitted" yaml:"admitted"`
	Baseline           int64 `json:"baseline" yaml:"baseline"`
	Clustering         int64 `json:"clustering" yaml:"clustering"`
	ClusterFallbacks   int64 `json:"cluster_fallbacks" yaml:"cluster_fallbacks"`
	ExtractorFallbacks int64 `json:"extractor_fallbacks" yaml:"extractor_fallbacks"`
	SpeakerChanges     int64 `json:"speaker_changes" yaml:"speaker_changes"`
}

// Statistics is a point-in-time summary of an engine.
type Statistics struct {
	TotalSpeakers  int                       `json:"total_speakers" yaml:"total_speakers"`
	CurrentSpeaker string                    `json:"current_speaker,omitempty" yaml:"current_speaker,omitempty"`
	Speakers       []speaker.Characteristics `json:"speakers" yaml:"speakers"`
	HistorySize    int                       `json:"history_size" yaml:"history_size"`
	Sensitivity    float64                   `json:"sensitivity" yaml:"sensitivity"`
	Counters       Counters                  `json:"counters" yaml:"counters"`
}

// Statistics summarizes the engine state.
func (e *Engine) Statistics() Statistics {
	profiles := e.registry.Profiles()
	s := Statistics{
		TotalSpeakers:  len(profiles),
		CurrentSpeaker: e.stability.Current(),
		Speakers:       make([]speaker.Characteristics, len(profiles)),
		HistorySize:    e.history.Len(),
		Sensitivity:    e.sensitivity,
		Counters:       e.counters,
	}
	s.Counters.ExtractorFallbacks = e.extractor.Fallbacks()
	for i, p := range profiles {
		s.Speakers[i] = p.Characteristics()
	}
	return s
}

// TableHeaders names the columns of TableRows.
func (s Statistics) TableHeaders() []string {
	return []string{"", "SPEAKER", "VOICE", "PITCH (HZ)", "ENERGY", "SAMPLES", "SPEECH"}
}

// TableRows renders one row per speaker, marking the current one.
func (s Statistics) TableRows() [][]string {
	rows := make([][]string, len(s.Speakers))
	for i, c := range s.Speakers {
		mark := ""
		if c.ID == s.CurrentSpeaker {
			mark = "*"
		}
		pitch := "-"
		if c.VoiceType != speaker.VoiceUnknown {
			pitch = fmt.Sprintf("%.0f ± %.0f", c.PitchMean, c.PitchStd)
		}
		rows[i] = []string{
			mark,
			c.ID,
			string(c.VoiceType),
			pitch,
			fmt.Sprintf("%.0f", c.EnergyMean),
			strconv.Itoa(c.Samples),
			c.TotalSpeech.Round(100 * time.Millisecond).String(),
		}
	}
	return rows
}
