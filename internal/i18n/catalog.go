package i18n

import (
	"strings"
	"time"

	"github.com/tbourn/bibleai/internal/domain"
)

// BibleVersion is a selectable translation.
type BibleVersion struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Lang string `json:"lang"`
}

// FaithOption describes a faith status choice.
type FaithOption struct {
	Value domain.FaithStatus `json:"value"`
	Label string             `json:"label"`
	Desc  string             `json:"desc"`
}

// Catalog groups every onboarding choice.
type Catalog struct {
	BibleVersions []BibleVersion `json:"bibleVersions"`
	Denominations []string       `json:"denominations"`
	Languages     []string       `json:"languages"`
	FaithOptions  []FaithOption  `json:"faithOptions"`
}

var catalog = Catalog{
	BibleVersions: []BibleVersion{
		{Code: "NIV", Name: "New International Version (NIV)", Lang: "English"},
		{Code: "ESV", Name: "English Standard Version (ESV)", Lang: "English"},
		{Code: "KJV", Name: "King James Version (KJV)", Lang: "English"},
		{Code: "NASB", Name: "New American Standard Bible (NASB)", Lang: "English"},
		{Code: "CUV", Name: "Chinese Union Version (CUV - 和合本)", Lang: "Chinese"},
		{Code: "RCUV", Name: "Revised Chinese Union Version (RCUV - 和合本修订版)", Lang: "Chinese"},
		{Code: "LUTH", Name: "Luther Bible", Lang: "German"},
		{Code: "RVR60", Name: "Reina-Valera 1960", Lang: "Spanish"},
	},
	Denominations: []string{
		"Non-Denominational",
		"Baptist",
		"Catholic",
		"Methodist",
		"Presbyterian",
		"Pentecostal/Charismatic",
		"Lutheran",
		"Anglican/Episcopal",
		"Orthodox",
		"Reformed",
		"Other",
	},
	Languages: []string{
		"English",
		"Chinese (Simplified)",
		"Chinese (Traditional)",
		"Spanish",
		"German",
		"French",
		"Korean",
		"Portuguese",
	},
	FaithOptions: []FaithOption{
		{Value: domain.FaithBeliever, Label: "I am a Believer", Desc: "I want to deepen my walk with God."},
		{Value: domain.FaithSeeker, Label: "I am a Seeker", Desc: "I have questions and am looking for answers."},
		{Value: domain.FaithLeader, Label: "I am a Church Leader", Desc: "I need tools for sermons and ministry."},
		{Value: domain.FaithSkeptic, Label: "I am Curious", Desc: "I want to understand what the Bible says."},
	},
}

// Options returns a copy of the onboarding catalog.
func Options() Catalog {
	c := catalog
	c.BibleVersions = append([]BibleVersion(nil), catalog.BibleVersions...)
	c.Denominations = append([]string(nil), catalog.Denominations...)
	c.Languages = append([]string(nil), catalog.Languages...)
	c.FaithOptions = append([]FaithOption(nil), catalog.FaithOptions...)
	return c
}

// KnownVersion reports whether code is a catalog Bible version.
func KnownVersion(code string) bool {
	for _, v := range catalog.BibleVersions {
		if strings.EqualFold(v.Code, code) {
			return true
		}
	}
	return false
}

// Verse is a verse-of-the-day entry in the user's language.
type Verse struct {
	Ref  string `json:"ref"`
	Text string `json:"text"`
}

type dailyVerse struct {
	en, zh Verse
}

var dailyVerses = []dailyVerse{
	{
		en: Verse{"John 3:16", "For God so loved the world that he gave his one and only Son, that whoever believes in him shall not perish but have eternal life."},
		zh: Verse{"约翰福音 3:16", "神爱世人，甚至将他的独生子赐给他们，叫一切信他的，不至灭亡，反得永生。"},
	},
	{
		en: Verse{"Psalm 23:1", "The LORD is my shepherd, I lack nothing."},
		zh: Verse{"诗篇 23:1", "耶和华是我的牧者，我必不致缺乏。"},
	},
	{
		en: Verse{"Philippians 4:13", "I can do all this through him who gives me strength."},
		zh: Verse{"腓立比书 4:13", "我靠着那加给我力量的，凡事都能做。"},
	},
	{
		en: Verse{"Jeremiah 29:11", "\"For I know the plans I have for you,\" declares the LORD, \"plans to prosper you and not to harm you, plans to give you hope and a future.\""},
		zh: Verse{"耶利米书 29:11", "耶和华说：我知道我向你们所怀的意念是赐平安的意念，不是降灾祸的意念，要叫你们末后有指望。"},
	},
	{
		en: Verse{"Proverbs 3:5", "Trust in the LORD with all your heart and lean not on your own understanding."},
		zh: Verse{"箴言 3:5", "你要专心仰赖耶和华，不可倚靠自己的聪明。"},
	},
	{
		en: Verse{"Romans 8:28", "And we know that in all things God works for the good of those who love him, who have been called according to his purpose."},
		zh: Verse{"罗马书 8:28", "我们晓得万事都互相效力，叫爱神的人得益处，就是按他旨意被召的人。"},
	},
	{
		en: Verse{"Isaiah 40:31", "But those who hope in the LORD will renew their strength. They will soar on wings like eagles; they will run and not grow weary, they will walk and not be faint."},
		zh: Verse{"以赛亚书 40:31", "但那等候耶和华的必从新得力。他们必如鹰展翅上腾；他们奔跑却不困倦，行走却不疲乏。"},
	},
	{
		en: Verse{"Joshua 1:9", "Have I not commanded you? Be strong and courageous. Do not be afraid; do not be discouraged, for the LORD your God will be with you wherever you go."},
		zh: Verse{"约书亚记 1:9", "我岂没有吩咐你吗？你当刚强壮胆！不要惧怕，也不要惊惶；因为你无论往哪里去，耶和华你的神必与你同在。"},
	},
	{
		en: Verse{"Matthew 11:28", "Come to me, all you who are weary and burdened, and I will give you rest."},
		zh: Verse{"马太福音 11:28", "凡劳苦担重担的人可以到我这里来，我就使你们得安息。"},
	},
}

// VerseOfTheDay picks the verse for the day of year of now. Any language
// whose name contains "Chinese" gets the Chinese text.
func VerseOfTheDay(now time.Time, lang string) Verse {
	v := dailyVerses[now.YearDay()%len(dailyVerses)]
	if strings.Contains(lang, "Chinese") {
		return v.zh
	}
	return v.en
}
