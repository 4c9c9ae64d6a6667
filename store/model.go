package store

import (
	"net/url"
	"strings"

	"gorm.io/gorm"
)

// 支持的应答语言
const (
	LocaleKo = "ko"
	LocaleEn = "en"
)

// =============================================================================
// 📦 领域类型
// =============================================================================

// IntentRecord 一条 (意图, 参数集) → 应答 的映射，写入后不可变
type IntentRecord struct {
	ID       uint   `json:"id"`
	Token    string `json:"token"`
	Method   string `json:"method"`
	AnswerKo string `json:"answer_ko"`
	AnswerEn string `json:"answer_en"`

	// Parameters LLM 侧参数的完整集合（不只是查询用到的键）
	Parameters map[string]string `json:"parameters"`

	// APIParams API 侧参数的完整集合
	APIParams map[string]string `json:"api_params,omitempty"`
}

// Answer 按语言返回应答文本，未知语言回退为韩语
func (r IntentRecord) Answer(locale string) string {
	return pickAnswer(locale, r.AnswerKo, r.AnswerEn)
}

// MultiTurnAnswer 多轮对话中的一步，按 (token, Position, 参数) 定位
type MultiTurnAnswer struct {
	ID         uint              `json:"id"`
	Token      string            `json:"token"`
	Position   int               `json:"position"`
	Final      bool              `json:"final"`
	AnswerKo   string            `json:"answer_ko"`
	AnswerEn   string            `json:"answer_en"`
	Parameters map[string]string `json:"parameters"`
}

func (a MultiTurnAnswer) Answer(locale string) string {
	return pickAnswer(locale, a.AnswerKo, a.AnswerEn)
}

// ParallelAnswer 原始补全文本到应答的直接映射（快速路径）
type ParallelAnswer struct {
	LLMResponse string `json:"llm_response"`
	AnswerKo    string `json:"answer_ko"`
	AnswerEn    string `json:"answer_en"`
}

func (a ParallelAnswer) Answer(locale string) string {
	return pickAnswer(locale, a.AnswerKo, a.AnswerEn)
}

func pickAnswer(locale, ko, en string) string {
	if strings.EqualFold(locale, LocaleEn) {
		return en
	}
	return ko
}

// CanonicalParams 将参数集编码为按键排序的查询串，键与值均做 URL 转义，
// 不同参数集不会得到相同结果
func CanonicalParams(params map[string]string) string {
	values := make(url.Values, len(params))
	for k, v := range params {
		values.Set(k, v)
	}
	return values.Encode()
}

func cloneParams(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// =============================================================================
// 🗄️ 表结构（与 internal/migration 中的 SQL 保持一致）
// =============================================================================

type apiCallRow struct {
	ID          uint          `gorm:"primaryKey;autoIncrement"`
	TokenHeader string        `gorm:"column:token_header;size:64;not null;index:idx_api_call_token"`
	APIMethod   string        `gorm:"column:api_method;size:128;not null;default:''"`
	AnswerKr    string        `gorm:"column:answer_kr;type:text;not null"`
	AnswerEn    string        `gorm:"column:answer_en;type:text;not null"`
	LLMParams   []llmParamRow `gorm:"foreignKey:APICallID;constraint:OnDelete:CASCADE"`
	APIParams   []apiParamRow `gorm:"foreignKey:APICallID;constraint:OnDelete:CASCADE"`
}

func (apiCallRow) TableName() string { return "api_call" }

type llmParamRow struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	APICallID uint   `gorm:"column:api_call_id;not null;index:idx_llm_param_call"`
	Param     string `gorm:"column:param;size:128;not null"`
	Value     string `gorm:"column:value;size:512;not null"`
}

func (llmParamRow) TableName() string { return "llm_param" }

type apiParamRow struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	APICallID uint   `gorm:"column:api_call_id;not null;index:idx_api_param_call"`
	Param     string `gorm:"column:param;size:128;not null"`
	Value     string `gorm:"column:value;size:512;not null"`
}

func (apiParamRow) TableName() string { return "api_param" }

type parallelAnswerRow struct {
	LLMResponse string `gorm:"column:llm_response;primaryKey;size:512"`
	AnswerKr    string `gorm:"column:answer_kr;type:text;not null"`
	AnswerEn    string `gorm:"column:answer_en;type:text;not null"`
}

func (parallelAnswerRow) TableName() string { return "parallel_answer" }

type multiTurnAnswerRow struct {
	ID           uint                `gorm:"primaryKey;autoIncrement"`
	TokenHeader  string              `gorm:"column:token_header;size:64;not null;index:idx_multiturn_token_order"`
	MultiturnEnd int                 `gorm:"column:multiturn_end;not null;default:0"`
	AnswerOrder  int                 `gorm:"column:answer_order;not null;default:0;index:idx_multiturn_token_order"`
	AnswerKr     string              `gorm:"column:answer_kr;type:text;not null"`
	AnswerEn     string              `gorm:"column:answer_en;type:text;not null"`
	Params       []multiTurnParamRow `gorm:"foreignKey:MultiTurnAnswerID;constraint:OnDelete:CASCADE"`
}

func (multiTurnAnswerRow) TableName() string { return "multiturn_answer" }

type multiTurnParamRow struct {
	ID                uint   `gorm:"primaryKey;autoIncrement"`
	MultiTurnAnswerID uint   `gorm:"column:multiturn_answer_id;not null;index:idx_multiturn_param_answer"`
	Param             string `gorm:"column:param;size:128;not null"`
	Value             string `gorm:"column:value;size:512;not null"`
}

func (multiTurnParamRow) TableName() string { return "multiturn_llm_param" }

// AutoMigrate 用 GORM 建表，供未运行 SQL 迁移的本地 SQLite 使用
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&apiCallRow{},
		&llmParamRow{},
		&apiParamRow{},
		&parallelAnswerRow{},
		&multiTurnAnswerRow{},
		&multiTurnParamRow{},
	)
}

func (r apiCallRow) toRecord() IntentRecord {
	rec := IntentRecord{
		ID:         r.ID,
		Token:      r.TokenHeader,
		Method:     r.APIMethod,
		AnswerKo:   r.AnswerKr,
		AnswerEn:   r.AnswerEn,
		Parameters: make(map[string]string, len(r.LLMParams)),
		APIParams:  make(map[string]string, len(r.APIParams)),
	}
	for _, p := range r.LLMParams {
		rec.Parameters[p.Param] = p.Value
	}
	for _, p := range r.APIParams {
		rec.APIParams[p.Param] = p.Value
	}
	return rec
}

func (r multiTurnAnswerRow) toAnswer() MultiTurnAnswer {
	a := MultiTurnAnswer{
		ID:         r.ID,
		Token:      r.TokenHeader,
		Position:   r.AnswerOrder,
		Final:      r.MultiturnEnd != 0,
		AnswerKo:   r.AnswerKr,
		AnswerEn:   r.AnswerEn,
		Parameters: make(map[string]string, len(r.Params)),
	}
	for _, p := range r.Params {
		a.Parameters[p.Param] = p.Value
	}
	return a
}
