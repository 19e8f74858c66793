package narration

import (
	"fmt"

	"github.com/windfall/cicero/internal/catalog"
)

// Cue identifies a stock spoken prompt emitted at a state transition.
type Cue string

const (
	CueWelcome   Cue = "welcome"
	CueModule    Cue = "module"
	CueListening Cue = "listening"
	CueRecording Cue = "recording"
	CueAnalyzing Cue = "analyzing"
	CueFinished  Cue = "finished"
	CueCancelled Cue = "cancelled"
	CueQuota     Cue = "quota"
	CueLanguage  Cue = "language"
)

var cueTexts = map[Cue]map[catalog.Language]string{
	CueWelcome: {
		catalog.LanguageTurkish: "Sisteme giriş yapıldı. Ben Cicero. Burada sesini değil, ifadenin teknik gücünü geliştireceğiz. Duyguya yer yok, metot esastır. Sadece talimatlarımı takip et.",
		catalog.LanguageEnglish: "System access granted. I am Cicero. We will develop the technical power of your expression, not your voice. Method over emotion. Follow my instructions.",
		catalog.LanguageGerman:  "Systemzugriff gewährt. Ich bin Cicero. Wir werden die technische Kraft deines Ausdrucks entwickeln. Methode vor Emotion. Folge meinen Anweisungen.",
	},
	CueRecording: {
		catalog.LanguageTurkish: "Uygulama aşaması. Seni dinliyorum. Başla.",
		catalog.LanguageEnglish: "Execution phase. I am listening. Begin.",
		catalog.LanguageGerman:  "Ausführungsphase. Ich höre zu. Beginne.",
	},
	CueAnalyzing: {
		catalog.LanguageTurkish: "Kayıt alındı. Teknik analiz süreci başlıyor. Bekle.",
		catalog.LanguageEnglish: "Recording captured. Technical analysis is starting. Wait.",
		catalog.LanguageGerman:  "Aufnahme erfasst. Die technische Analyse beginnt. Warte.",
	},
	CueFinished: {
		catalog.LanguageTurkish: "Analiz tamamlandı. Şimdi sonuçları teknik olarak değerlendireceğiz.",
		catalog.LanguageEnglish: "Analysis complete. We will now evaluate the results technically.",
		catalog.LanguageGerman:  "Analyse abgeschlossen. Wir werten die Ergebnisse jetzt technisch aus.",
	},
	CueCancelled: {
		catalog.LanguageTurkish: "Egzersiz iptal edildi.",
		catalog.LanguageEnglish: "Exercise cancelled.",
		catalog.LanguageGerman:  "Übung abgebrochen.",
	},
	CueQuota: {
		catalog.LanguageTurkish: "Sistem kotası aşıldı. Teknik analiz şu an yapılamıyor. Lütfen planınızı kontrol edin veya biraz bekleyin.",
		catalog.LanguageEnglish: "System quota exceeded. Technical analysis is unavailable right now. Check your plan or wait a little.",
		catalog.LanguageGerman:  "Systemkontingent überschritten. Die technische Analyse ist derzeit nicht verfügbar. Prüfe deinen Plan oder warte kurz.",
	},
	CueLanguage: {
		catalog.LanguageTurkish: "Sistem dili güncellendi. Metot değişmez.",
		catalog.LanguageEnglish: "System language updated. The method does not change.",
		catalog.LanguageGerman:  "Systemsprache aktualisiert. Die Methode ändert sich nicht.",
	},
}

var moduleIntros = map[catalog.Category]map[catalog.Language]string{
	catalog.CategoryEarTraining: {
		catalog.LanguageTurkish: "Kulak Eğitimi başlıyor. Hedef: fonetik farkındalık. Konuşmadan önce duymayı ve kusuru tespit etmeyi öğreneceksin.",
		catalog.LanguageEnglish: "Ear Training starting. Goal: phonetic awareness. Learn to hear and detect flaws before you speak.",
		catalog.LanguageGerman:  "Gehörbildung beginnt. Ziel: phonetisches Bewusstsein. Lerne zu hören und Mängel zu erkennen, bevor du sprichst.",
	},
	catalog.CategoryArticulation: {
		catalog.LanguageTurkish: "Artikülasyon çalışması. Hedef: dudak ve dil kas hafızası. Hızlanma, netliğe odaklan.",
		catalog.LanguageEnglish: "Articulation work. Goal: lip and tongue muscle memory. Do not rush, focus on clarity.",
		catalog.LanguageGerman:  "Artikulationsarbeit. Ziel: Lippen- und Zungenmuskelgedächtnis. Nicht hetzen, auf Klarheit konzentrieren.",
	},
	catalog.CategoryBreath: {
		catalog.LanguageTurkish: "Nefes yönetimi. Hedef: diyafram kontrolü. Uzun cümlelerde hava yönetimini öğreneceksin.",
		catalog.LanguageEnglish: "Breath management. Goal: diaphragm control. Learn air management in long sentences.",
		catalog.LanguageGerman:  "Atemmanagement. Ziel: Zwerchfellkontrolle. Lerne das Luftmanagement in langen Sätzen.",
	},
	catalog.CategoryIntonation: {
		catalog.LanguageTurkish: "Tonlama analizi. Hedef: anlamlı vurgu noktaları. Sesindeki gereksiz dalgalanmaları kontrol altına alacağız.",
		catalog.LanguageEnglish: "Intonation analysis. Goal: meaningful emphasis points. We will control unnecessary fluctuations in your voice.",
		catalog.LanguageGerman:  "Intonationsanalyse. Ziel: sinnvolle Betonungspunkte. Wir werden unnötige Schwankungen kontrollieren.",
	},
}

// CueText resolves a stock cue in the given language, falling back to Turkish.
func CueText(cue Cue, lang catalog.Language) string {
	if texts, ok := cueTexts[cue]; ok {
		if text, ok := texts[lang]; ok {
			return text
		}
		return texts[catalog.LanguageTurkish]
	}
	return ""
}

// ModuleIntro resolves the spoken introduction for a training module.
func ModuleIntro(category catalog.Category, lang catalog.Language) string {
	if texts, ok := moduleIntros[category]; ok {
		if text, ok := texts[lang]; ok {
			return text
		}
		return texts[catalog.LanguageTurkish]
	}
	return fmt.Sprintf("Switching to the %s module.", category)
}

// InstructionFor builds the exercise-specific spoken instruction.
func InstructionFor(ex catalog.Exercise) string {
	if ex.Category == catalog.CategoryEarTraining {
		return fmt.Sprintf("Instruction: first listen to this phonetic model and notice where the syllables close. Then I will ask for your attempt. Recording begins: %s", ex.Text)
	}
	return fmt.Sprintf("Instruction: first analyze the articulation model you hear from me. Then it is your turn. Text: %s", ex.Text)
}
