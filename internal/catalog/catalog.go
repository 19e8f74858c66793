// Package catalog holds the static exercise definitions grouped by training
// module. Catalog exercises live for the process lifetime; ad-hoc ear-training
// exercises are synthesized at selection time and never persisted.
package catalog

import (
	"fmt"
	"time"
)

// Language is a supported coaching language.
type Language string

const (
	LanguageTurkish Language = "Turkish"
	LanguageEnglish Language = "English"
	LanguageGerman  Language = "German"
)

// Valid reports whether l is one of the supported languages.
func (l Language) Valid() bool {
	switch l {
	case LanguageTurkish, LanguageEnglish, LanguageGerman:
		return true
	}
	return false
}

// Difficulty is an exercise difficulty level.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "Beginner"
	DifficultyIntermediate Difficulty = "Intermediate"
	DifficultyAdvanced     Difficulty = "Advanced"
)

// Category is one of the four fixed training modules.
type Category string

const (
	CategoryEarTraining  Category = "Ear Training"
	CategoryArticulation Category = "Articulation & Tongue Twisters"
	CategoryBreath       Category = "Breath Control"
	CategoryIntonation   Category = "Intonation & Emphasis"
)

// Valid reports whether c is one of the fixed module categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryEarTraining, CategoryArticulation, CategoryBreath, CategoryIntonation:
		return true
	}
	return false
}

// Exercise is an immutable target utterance with its coaching metadata.
type Exercise struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Text       string     `json:"text"`
	Difficulty Difficulty `json:"difficulty"`
	Language   Language   `json:"language"`
	Category   Category   `json:"category"`
}

// Module describes one training focus.
type Module struct {
	ID          int      `json:"id"`
	Category    Category `json:"category"`
	Description string   `json:"description"`
}

var modules = []Module{
	{ID: 1, Category: CategoryEarTraining, Description: "Phonetic awareness and sound discrimination."},
	{ID: 2, Category: CategoryArticulation, Description: "Articulation and muscle-memory drills."},
	{ID: 3, Category: CategoryBreath, Description: "Correct pausing and diaphragm use."},
	{ID: 4, Category: CategoryIntonation, Description: "Emotional delivery and emphasis points."},
}

var exercises = []Exercise{
	{
		ID:         "tr_ear_1",
		Title:      "Ünlü Daralması",
		Text:       "Biliyor, demiyor, görmüyor.",
		Difficulty: DifficultyBeginner,
		Language:   LanguageTurkish,
		Category:   CategoryEarTraining,
	},
	{
		ID:         "tr_artic_1",
		Title:      "Piknikte Papatya",
		Text:       "Pireli peynirci, paspasçı porsukla piknikte papatya topladı.",
		Difficulty: DifficultyBeginner,
		Language:   LanguageTurkish,
		Category:   CategoryArticulation,
	},
	{
		ID:         "tr_artic_2",
		Title:      "Şemsi Paşa",
		Text:       "Şemsi Paşa pasajında sesi büzüşesiceler.",
		Difficulty: DifficultyIntermediate,
		Language:   LanguageTurkish,
		Category:   CategoryArticulation,
	},
	{
		ID:         "tr_breath_1",
		Title:      "Uzun Maraton",
		Text:       "Eskişehir'den yola çıkan yaşlı adam, çantasındaki taze ekmekleri martılara atmak için sahil boyunca hiç durmadan yürüdü.",
		Difficulty: DifficultyIntermediate,
		Language:   LanguageTurkish,
		Category:   CategoryBreath,
	},
	{
		ID:         "tr_inton_1",
		Title:      "Soru ve Cevap",
		Text:       "Neden hala buradasın? Çünkü beklemem gerektiğini söylediler.",
		Difficulty: DifficultyBeginner,
		Language:   LanguageTurkish,
		Category:   CategoryIntonation,
	},
	{
		ID:         "en_artic_1",
		Title:      "Peter Piper",
		Text:       "Peter Piper picked a peck of pickled peppers.",
		Difficulty: DifficultyBeginner,
		Language:   LanguageEnglish,
		Category:   CategoryArticulation,
	},
	{
		ID:         "en_breath_1",
		Title:      "Long Sentence",
		Text:       "The quick brown fox jumps over the lazy dog while the silver moon shines brightly over the silent forest.",
		Difficulty: DifficultyIntermediate,
		Language:   LanguageEnglish,
		Category:   CategoryBreath,
	},
	{
		ID:         "de_artic_1",
		Title:      "Fischers Fritz",
		Text:       "Fischers Fritz fischt frische Fische, frische Fische fischt Fischers Fritz.",
		Difficulty: DifficultyBeginner,
		Language:   LanguageGerman,
		Category:   CategoryArticulation,
	},
}

// Modules returns the four training modules.
func Modules() []Module {
	out := make([]Module, len(modules))
	copy(out, modules)
	return out
}

// ByModule returns the exercises for a language within one module category.
func ByModule(lang Language, category Category) []Exercise {
	var out []Exercise
	for _, ex := range exercises {
		if ex.Language == lang && ex.Category == category {
			out = append(out, ex)
		}
	}
	return out
}

// ByID looks up a catalog exercise by identifier.
func ByID(id string) (Exercise, bool) {
	for _, ex := range exercises {
		if ex.ID == id {
			return ex, true
		}
	}
	return Exercise{}, false
}

// AdHoc synthesizes an ear-training exercise for a user-supplied word. The
// identifier is timestamp-derived; the exercise is not persisted beyond the
// active session.
func AdHoc(word string, lang Language) Exercise {
	return Exercise{
		ID:         fmt.Sprintf("custom_%d", time.Now().UnixMilli()),
		Title:      word,
		Text:       word,
		Difficulty: DifficultyBeginner,
		Language:   lang,
		Category:   CategoryEarTraining,
	}
}
