package store

import (
	"context"
	"strconv"

	"go.uber.org/zap"
)

// =============================================================================
// 🌱 内置应答目录
// =============================================================================

type toggleAnswers struct {
	token, method string
	onKo, onEn    string
	offKo, offEn  string
}

var toggles = []toggleAnswers{
	{"<jarvis_0>", "control_manager", "조명을 켰습니다.", "The lights have been turned on.", "조명을 껐습니다.", "The lights have been turned off."},
	{"<jarvis_1>", "control_door", "문을 열었습니다.", "The door has been opened.", "문을 잠궜습니다.", "The door has been locked."},
	{"<jarvis_2>", "control_air_conditioner", "에어컨을 켰습니다.", "The air conditioner has been turned on.", "에어컨을 껐습니다.", "The air conditioner has been turned off."},
	{"<jarvis_3>", "control_blind", "블라인드를 올렸습니다.", "The blinds have been raised.", "블라인드를 내렸습니다.", "The blinds have been lowered."},
}

var lateToggles = []toggleAnswers{
	{"<jarvis_6>", "control_music", "음악을 켰습니다.", "The music has been turned on.", "음악을 껐습니다.", "The music has been turned off."},
	{"<jarvis_7>", "control_humidifier", "가습기를 켰습니다.", "The humidifier has been turned on.", "가습기를 껐습니다.", "The humidifier has been turned off."},
}

// 商品编号 1..10
var productAnswers = [][2]string{
	{"홈런볼은 A구역에 있습니다.", "Home Run Ball is located in section A."},
	{"새우깡은 A구역에 있습니다.", "Saewookkang is located in section A."},
	{"꼬북칩은 A구역에 있습니다.", "Kkobukchip is located in section A."},
	{"빼빼로는 B구역에 있습니다.", "Pepero is located in section B."},
	{"초코파이는 B구역에 있습니다.", "Choco Pie is located in section B."},
	{"고래밥은 B구역에 있습니다.", "Goraebap is located in section B."},
	{"콜라는 냉장고1에 있습니다.", "Cola is in refrigerator 1."},
	{"사이다는 냉장고2에 있습니다.", "Cider is in refrigerator 2."},
	{"오렌지주스는 냉장고1에 있습니다.", "Orange juice is in refrigerator 1."},
	{"초코우유는 냉장고2에 있습니다.", "Chocolate milk is in refrigerator 2."},
}

// 区域编号 1..4：A구역、B구역、냉장고1、냉장고2
var sectionAnswers = [][2]string{
	{"A구역에는 홈런볼, 새우깡, 꼬북칩이 있습니다.", "In section A, there are Home Run Ball, Saewookkang, and Kkobukchip."},
	{"B구역에는 빼빼로, 초코파이, 새우깡이 있습니다.", "In section B, there are Pepero, Choco Pie, and Saewookkang."},
	{"냉장고1에는 콜라, 오렌지주스가 있습니다.", "In refrigerator 1, there are Cola and Orange juice."},
	{"냉장고2에는 사이다, 초코우유가 있습니다.", "In refrigerator 2, there are Cider and Chocolate milk."},
}

func appendToggles(out []IntentRecord, ts []toggleAnswers) []IntentRecord {
	for _, t := range ts {
		out = append(out,
			IntentRecord{Token: t.token, Method: t.method, AnswerKo: t.onKo, AnswerEn: t.onEn, Parameters: map[string]string{"enable": "True"}},
			IntentRecord{Token: t.token, Method: t.method, AnswerKo: t.offKo, AnswerEn: t.offEn, Parameters: map[string]string{"enable": "False"}},
		)
	}
	return out
}

// Catalogue 返回内置的 <jarvis_0>..<jarvis_7> 应答目录（按写入顺序）
func Catalogue() []IntentRecord {
	out := appendToggles(nil, toggles)

	for i, a := range productAnswers {
		out = append(out, IntentRecord{
			Token:      "<jarvis_4>",
			Method:     "product_location_query",
			AnswerKo:   a[0],
			AnswerEn:   a[1],
			Parameters: map[string]string{"product": strconv.Itoa(i + 1)},
		})
	}
	for i, a := range sectionAnswers {
		out = append(out, IntentRecord{
			Token:      "<jarvis_5>",
			Method:     "section_query",
			AnswerKo:   a[0],
			AnswerEn:   a[1],
			Parameters: map[string]string{"section": strconv.Itoa(i + 1)},
		})
	}

	return appendToggles(out, lateToggles)
}

// Seed 写入内置目录；已存在的记录被跳过，重复调用是安全的
func (s *Store) Seed(ctx context.Context) (int, error) {
	inserted := 0
	for _, rec := range Catalogue() {
		ok, err := s.Insert(ctx, rec)
		if err != nil {
			return inserted, err
		}
		if ok {
			inserted++
		}
	}
	s.logger.Info("response store seeded", zap.Int("inserted", inserted))
	return inserted, nil
}
