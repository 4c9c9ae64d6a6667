// =============================================================================
// 📦 测试数据工厂 - 对话轮次
// =============================================================================
// 提供预置的转写、补全与应答记录
// =============================================================================
package fixtures

import (
	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/config"
	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/store"
)

// 常用补全
const (
	LightsOnCompletion  = "<jarvis_0>(enable=True)"
	LightsOffCompletion = "<jarvis_0>(enable=False)"
	ColaCompletion      = `<jarvis_4>(product="7")`
	SectionACompletion  = "<jarvis_5>(section=1)"
)

// LightsOn 조명 켜기
func LightsOn() store.IntentRecord {
	return store.IntentRecord{
		Token:      "<jarvis_0>",
		Method:     "POST",
		AnswerKo:   "조명을 켰습니다.",
		AnswerEn:   "The lights have been turned on.",
		Parameters: map[string]string{"enable": "True"},
	}
}

// Cola 콜라 위치
func Cola() store.IntentRecord {
	return store.IntentRecord{
		Token:      "<jarvis_4>",
		Method:     "GET",
		AnswerKo:   "콜라는 냉장고1에 있습니다.",
		AnswerEn:   "Cola is in refrigerator 1.",
		Parameters: map[string]string{"product": "7"},
	}
}

// MultiSentence 多句应答，用于播放顺序测试
func MultiSentence() store.IntentRecord {
	return store.IntentRecord{
		Token:      "<jarvis_5>",
		Method:     "GET",
		AnswerKo:   "첫 번째 문장입니다. 두 번째 문장입니다! 세 번째 문장입니다?",
		AnswerEn:   "First. Second! Third?",
		Parameters: map[string]string{"section": "1"},
	}
}

// VoiceSettings 测试用配置：无尾部等待
func VoiceSettings() config.VoiceConfig {
	cfg := config.DefaultVoiceConfig()
	cfg.PlaybackPadding = 0
	return cfg
}
