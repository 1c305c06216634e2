package models

// StrictnessLevel controls how demanding the grading prompt is.
type StrictnessLevel string

const (
	StrictnessStrict   StrictnessLevel = "strict"
	StrictnessModerate StrictnessLevel = "moderate"
	StrictnessLoose    StrictnessLevel = "loose"
)

// FeedbackTone controls the register of generated feedback.
type FeedbackTone string

const (
	ToneFormal       FeedbackTone = "formal"
	ToneFriendly     FeedbackTone = "friendly"
	ToneConstructive FeedbackTone = "constructive"
)

// FeedbackLength controls how verbose generated feedback should be.
type FeedbackLength string

const (
	LengthShort    FeedbackLength = "short"
	LengthMedium   FeedbackLength = "medium"
	LengthDetailed FeedbackLength = "detailed"
)

// GradingSettings tunes how scores are assigned.
type GradingSettings struct {
	Strictness StrictnessLevel `json:"strictness,omitempty" validate:"omitempty,oneof=strict moderate loose"`
}

// EffectiveStrictness resolves the strictness level, applying the default when unset.
func (g *GradingSettings) EffectiveStrictness() StrictnessLevel {
	if g == nil || g.Strictness == "" {
		return StrictnessModerate
	}
	return g.Strictness
}

// FeedbackSettings tunes the feedback text the model is asked to produce.
// CustomFeedbackPrompt, when present, replaces the tone and length instructions.
type FeedbackSettings struct {
	Tone                 FeedbackTone   `json:"tone,omitempty" validate:"omitempty,oneof=formal friendly constructive"`
	Length               FeedbackLength `json:"length,omitempty" validate:"omitempty,oneof=short medium detailed"`
	CustomFeedbackPrompt string         `json:"custom_feedback_prompt,omitempty"`
}

// EffectiveTone resolves the feedback tone, applying the default when unset.
func (f *FeedbackSettings) EffectiveTone() FeedbackTone {
	if f == nil || f.Tone == "" {
		return ToneConstructive
	}
	return f.Tone
}

// EffectiveLength resolves the feedback length, applying the default when unset.
func (f *FeedbackSettings) EffectiveLength() FeedbackLength {
	if f == nil || f.Length == "" {
		return LengthMedium
	}
	return f.Length
}
