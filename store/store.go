package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/internal/database"
)

// ErrNotFound 没有匹配的记录；调用方应将其视为正常结果
var ErrNotFound = errors.New("store: no matching record")

// 查询类别，用于指标标签
const (
	KindIntent    = "intent"
	KindIntentAPI = "intent_api"
	KindMultiTurn = "multiturn"
	KindParallel  = "parallel"
)

const writeRetries = 3

// LookupObserver 接收每次查询的结果
type LookupObserver interface {
	RecordStoreLookup(kind string, found bool)
}

// Option 配置 Store
type Option func(*Store)

// WithLogger 设置日志器
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLookupObserver 设置查询观察者（通常是 metrics.Collector）
func WithLookupObserver(o LookupObserver) Option {
	return func(s *Store) { s.observer = o }
}

// =============================================================================
// 🗄️ Store
// =============================================================================

// Store 参数化应答库
//
// 数据库是持久化的事实来源；查询只读内存索引。索引在 Open 时从库中
// 重建，并在每次写事务提交后增量更新。写操作串行执行。
type Store struct {
	pool     *database.PoolManager
	logger   *zap.Logger
	observer LookupObserver

	writeMu sync.Mutex

	mu       sync.RWMutex
	records  map[uint]IntentRecord
	byLLM    *matcher
	byAPI    *matcher
	turns    map[uint]MultiTurnAnswer
	byTurn   *matcher
	parallel map[string]ParallelAnswer
}

// Open 创建 Store 并从数据库加载索引
func Open(ctx context.Context, pool *database.PoolManager, opts ...Option) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("store: pool is required")
	}

	s := &Store{
		pool:   pool,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("component", "response_store"))

	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload 丢弃内存索引并从数据库重建。与写操作串行，
// 不会用提交前读到的快照覆盖刚写入的增量
func (s *Store) Reload(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	db := s.pool.DB().WithContext(ctx)
	byID := func(tx *gorm.DB) *gorm.DB { return tx.Order("id") }

	var calls []apiCallRow
	if err := db.Preload("LLMParams", byID).Preload("APIParams", byID).Order("id").Find(&calls).Error; err != nil {
		return fmt.Errorf("store: load intents: %w", err)
	}

	var turns []multiTurnAnswerRow
	if err := db.Preload("Params", byID).Order("id").Find(&turns).Error; err != nil {
		return fmt.Errorf("store: load multi-turn answers: %w", err)
	}

	var parallel []parallelAnswerRow
	if err := db.Find(&parallel).Error; err != nil {
		return fmt.Errorf("store: load parallel answers: %w", err)
	}

	records := make(map[uint]IntentRecord, len(calls))
	byLLM, byAPI := newMatcher(), newMatcher()
	for _, row := range calls {
		rec := row.toRecord()
		records[rec.ID] = rec
		byLLM.add(rec.Token, rec.ID, rec.Parameters)
		byAPI.add(rec.Token, rec.ID, rec.APIParams)
	}

	turnMap := make(map[uint]MultiTurnAnswer, len(turns))
	byTurn := newMatcher()
	for _, row := range turns {
		a := row.toAnswer()
		turnMap[a.ID] = a
		byTurn.add(turnGroup(a.Token, a.Position), a.ID, a.Parameters)
	}

	parallelMap := make(map[string]ParallelAnswer, len(parallel))
	for _, row := range parallel {
		parallelMap[row.LLMResponse] = ParallelAnswer{
			LLMResponse: row.LLMResponse,
			AnswerKo:    row.AnswerKr,
			AnswerEn:    row.AnswerEn,
		}
	}

	s.mu.Lock()
	s.records, s.byLLM, s.byAPI = records, byLLM, byAPI
	s.turns, s.byTurn = turnMap, byTurn
	s.parallel = parallelMap
	s.mu.Unlock()

	s.logger.Info("response store index loaded",
		zap.Int("intents", len(records)),
		zap.Int("multiturn", len(turnMap)),
		zap.Int("parallel", len(parallelMap)),
	)
	return nil
}

func turnGroup(token string, position int) string {
	return fmt.Sprintf("%s#%d", token, position)
}

func (s *Store) observe(kind string, found bool) {
	if s.observer != nil {
		s.observer.RecordStoreLookup(kind, found)
	}
}

// =============================================================================
// 🔍 查询
// =============================================================================

// Lookup 按 LLM 侧参数查找意图记录
//
// params 中每个 (key, value) 都必须由该记录的某一参数行满足；记录多出的
// 参数不影响匹配，且返回值携带记录的完整参数集。多条记录满足时按存储
// 顺序取第一条（不做歧义检测）。
func (s *Store) Lookup(ctx context.Context, token string, params map[string]string) (IntentRecord, error) {
	s.mu.RLock()
	id, ok := s.byLLM.match(token, params)
	rec := s.records[id]
	s.mu.RUnlock()

	s.observe(KindIntent, ok)
	if !ok {
		return IntentRecord{}, ErrNotFound
	}
	return copyRecord(rec), nil
}

// LookupByAPIParams 按 API 侧参数查找意图记录
func (s *Store) LookupByAPIParams(ctx context.Context, token string, apiParams map[string]string) (IntentRecord, error) {
	s.mu.RLock()
	id, ok := s.byAPI.match(token, apiParams)
	rec := s.records[id]
	s.mu.RUnlock()

	s.observe(KindIntentAPI, ok)
	if !ok {
		return IntentRecord{}, ErrNotFound
	}
	return copyRecord(rec), nil
}

// LookupMultiTurn 在指定步骤位置上按参数查找多轮应答
func (s *Store) LookupMultiTurn(ctx context.Context, token string, position int, params map[string]string) (MultiTurnAnswer, error) {
	s.mu.RLock()
	id, ok := s.byTurn.match(turnGroup(token, position), params)
	a := s.turns[id]
	s.mu.RUnlock()

	s.observe(KindMultiTurn, ok)
	if !ok {
		return MultiTurnAnswer{}, ErrNotFound
	}
	a.Parameters = cloneParams(a.Parameters)
	return a, nil
}

// LookupParallelAnswer 按原始补全文本精确查找
func (s *Store) LookupParallelAnswer(ctx context.Context, llmResponse string) (ParallelAnswer, error) {
	s.mu.RLock()
	a, ok := s.parallel[llmResponse]
	s.mu.RUnlock()

	s.observe(KindParallel, ok)
	if !ok {
		return ParallelAnswer{}, ErrNotFound
	}
	return a, nil
}

// Ambiguous 返回满足约束的全部记录 ID，用于诊断重复数据
func (s *Store) Ambiguous(token string, params map[string]string) []uint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byLLM.matchAll(token, params)
}

// Intents 按存储顺序列出全部意图记录
func (s *Store) Intents(ctx context.Context) []IntentRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]uint, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]IntentRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, copyRecord(s.records[id]))
	}
	return out
}

// Stats 索引规模
type Stats struct {
	Intents   int `json:"intents"`
	MultiTurn int `json:"multiturn"`
	Parallel  int `json:"parallel"`
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Intents:   s.byLLM.len(),
		MultiTurn: s.byTurn.len(),
		Parallel:  len(s.parallel),
	}
}

func copyRecord(rec IntentRecord) IntentRecord {
	rec.Parameters = cloneParams(rec.Parameters)
	rec.APIParams = cloneParams(rec.APIParams)
	return rec
}

// =============================================================================
// ✏️ 写入（幂等）
// =============================================================================

// Insert 事务性写入一条意图记录及其参数行
//
// 若 (Token, Parameters) 已能查到记录则跳过，返回 false。
func (s *Store) Insert(ctx context.Context, rec IntentRecord) (bool, error) {
	if rec.Token == "" {
		return false, fmt.Errorf("store: token is required")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	_, exists := s.byLLM.match(rec.Token, rec.Parameters)
	s.mu.RUnlock()
	if exists {
		return false, nil
	}

	row := apiCallRow{
		TokenHeader: rec.Token,
		APIMethod:   rec.Method,
		AnswerKr:    rec.AnswerKo,
		AnswerEn:    rec.AnswerEn,
	}
	for _, k := range sortedKeys(rec.Parameters) {
		row.LLMParams = append(row.LLMParams, llmParamRow{Param: k, Value: rec.Parameters[k]})
	}
	for _, k := range sortedKeys(rec.APIParams) {
		row.APIParams = append(row.APIParams, apiParamRow{Param: k, Value: rec.APIParams[k]})
	}

	err := s.pool.WithTransactionRetry(ctx, writeRetries, func(tx *gorm.DB) error {
		return tx.Create(&row).Error
	})
	if err != nil {
		return false, fmt.Errorf("store: insert %s: %w", rec.Token, err)
	}

	stored := row.toRecord()
	s.mu.Lock()
	s.records[stored.ID] = stored
	s.byLLM.add(stored.Token, stored.ID, stored.Parameters)
	s.byAPI.add(stored.Token, stored.ID, stored.APIParams)
	s.mu.Unlock()

	s.logger.Debug("intent inserted",
		zap.Uint("id", stored.ID),
		zap.String("token", stored.Token),
		zap.String("params", CanonicalParams(stored.Parameters)),
	)
	return true, nil
}

// InsertMultiTurn 写入多轮应答的一步，按 (Token, Position, Parameters) 幂等
func (s *Store) InsertMultiTurn(ctx context.Context, a MultiTurnAnswer) (bool, error) {
	if a.Token == "" {
		return false, fmt.Errorf("store: token is required")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	group := turnGroup(a.Token, a.Position)
	s.mu.RLock()
	_, exists := s.byTurn.match(group, a.Parameters)
	s.mu.RUnlock()
	if exists {
		return false, nil
	}

	row := multiTurnAnswerRow{
		TokenHeader: a.Token,
		AnswerOrder: a.Position,
		AnswerKr:    a.AnswerKo,
		AnswerEn:    a.AnswerEn,
	}
	if a.Final {
		row.MultiturnEnd = 1
	}
	for _, k := range sortedKeys(a.Parameters) {
		row.Params = append(row.Params, multiTurnParamRow{Param: k, Value: a.Parameters[k]})
	}

	err := s.pool.WithTransactionRetry(ctx, writeRetries, func(tx *gorm.DB) error {
		return tx.Create(&row).Error
	})
	if err != nil {
		return false, fmt.Errorf("store: insert multi-turn %s#%d: %w", a.Token, a.Position, err)
	}

	stored := row.toAnswer()
	s.mu.Lock()
	s.turns[stored.ID] = stored
	s.byTurn.add(group, stored.ID, stored.Parameters)
	s.mu.Unlock()
	return true, nil
}

// InsertParallelAnswer 写入快速路径应答，已存在则跳过
func (s *Store) InsertParallelAnswer(ctx context.Context, llmResponse, answerKo, answerEn string) (bool, error) {
	if llmResponse == "" {
		return false, fmt.Errorf("store: llm response is required")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	_, exists := s.parallel[llmResponse]
	s.mu.RUnlock()
	if exists {
		return false, nil
	}

	row := parallelAnswerRow{LLMResponse: llmResponse, AnswerKr: answerKo, AnswerEn: answerEn}
	err := s.pool.WithTransactionRetry(ctx, writeRetries, func(tx *gorm.DB) error {
		return tx.Create(&row).Error
	})
	if err != nil {
		return false, fmt.Errorf("store: insert parallel answer: %w", err)
	}

	s.mu.Lock()
	s.parallel[llmResponse] = ParallelAnswer{LLMResponse: llmResponse, AnswerKo: answerKo, AnswerEn: answerEn}
	s.mu.Unlock()
	return true, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
