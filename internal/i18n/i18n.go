// Package i18n maps the user's language preference to the messages the
// assistant emits on its own (notices, fallbacks, error texts) and carries the
// static catalogs offered during onboarding.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
)

// Bundle holds the localized strings of one language.
type Bundle struct {
	Tag             language.Tag `json:"-"`
	RateLimit       string       `json:"rateLimit"`
	SearchError     string       `json:"searchError"`
	PastorError     string       `json:"pastorError"`
	PrayerError     string       `json:"prayerError"`
	NoScriptures    string       `json:"noScriptures"`
	NoCounsel       string       `json:"noCounsel"`
	PrayerDefault   string       `json:"prayerDefault"`
	ChapterError    string       `json:"chapterError"`
	QuizUnavailable string       `json:"quizUnavailable"`
}

var (
	english = Bundle{
		Tag:             language.English,
		RateLimit:       "You have reached today's limit of free requests. Please come back tomorrow.",
		SearchError:     "I apologize, I am having trouble searching the scriptures right now. Please try again.",
		PastorError:     "I am having trouble connecting to the service. Please try again.",
		PrayerError:     "Unable to generate prayer at this time.",
		NoScriptures:    "No scriptures found.",
		NoCounsel:       "I am unable to provide counsel at this moment.",
		PrayerDefault:   "Let us pray...",
		ChapterError:    "Error loading chapter text.",
		QuizUnavailable: "Today's quiz could not be prepared. Please try again later.",
	}
	simplifiedChinese = Bundle{
		Tag:             language.SimplifiedChinese,
		RateLimit:       "您今天的免费次数已用完，请明天再来。",
		SearchError:     "抱歉，我暂时无法搜索经文，请稍后再试。",
		PastorError:     "暂时无法连接服务，请稍后再试。",
		PrayerError:     "暂时无法生成祷告。",
		NoScriptures:    "未找到相关经文。",
		NoCounsel:       "我此刻无法提供建议。",
		PrayerDefault:   "让我们一起祷告……",
		ChapterError:    "加载章节内容时出错。",
		QuizUnavailable: "今日测验暂时无法准备，请稍后再试。",
	}
	traditionalChinese = Bundle{
		Tag:             language.TraditionalChinese,
		RateLimit:       "您今天的免費次數已用完，請明天再來。",
		SearchError:     "抱歉，我暫時無法搜尋經文，請稍後再試。",
		PastorError:     "暫時無法連接服務，請稍後再試。",
		PrayerError:     "暫時無法生成禱告。",
		NoScriptures:    "未找到相關經文。",
		NoCounsel:       "我此刻無法提供建議。",
		PrayerDefault:   "讓我們一起禱告……",
		ChapterError:    "載入章節內容時出錯。",
		QuizUnavailable: "今日測驗暫時無法準備，請稍後再試。",
	}

	// English first: it is the matcher's default.
	bundles = []Bundle{english, simplifiedChinese, traditionalChinese}
	matcher = language.NewMatcher([]language.Tag{english.Tag, simplifiedChinese.Tag, traditionalChinese.Tag})
)

// languageTags maps the display names offered during onboarding.
var languageTags = map[string]language.Tag{
	"english":               language.English,
	"chinese (simplified)":  language.SimplifiedChinese,
	"chinese (traditional)": language.TraditionalChinese,
	"spanish":               language.Spanish,
	"german":                language.German,
	"french":                language.French,
	"korean":                language.Korean,
	"portuguese":            language.Portuguese,
}

// Tag resolves a language preference, either a display name such as
// "Chinese (Simplified)" or a BCP 47 tag such as "zh-TW". Unknown values
// yield language.Und.
func Tag(lang string) language.Tag {
	key := strings.ToLower(strings.TrimSpace(lang))
	if t, ok := languageTags[key]; ok {
		return t
	}
	if t, err := language.Parse(key); err == nil {
		return t
	}
	return language.Und
}

// Match returns the closest bundle for lang, falling back to English.
func Match(lang string) Bundle {
	_, idx, conf := matcher.Match(Tag(lang))
	if conf == language.No || idx < 0 || idx >= len(bundles) {
		return english
	}
	return bundles[idx]
}
