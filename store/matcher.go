package store

import "sort"

// Param 一行参数 (key, value)
type Param struct {
	Key   string
	Value string
}

// matcher 父记录 → 参数行 的内存索引
//
// 查询的每个 (key, value) 约束都必须被同一父记录下的某一行满足（N 个约束
// 之间为 AND）；零约束时该分组下的任意记录都匹配。多条记录同时满足时，
// 按 ID 升序取第一条。
type matcher struct {
	groups map[string][]uint
	rows   map[uint]map[Param]struct{}
}

func newMatcher() *matcher {
	return &matcher{
		groups: make(map[string][]uint),
		rows:   make(map[uint]map[Param]struct{}),
	}
}

// add 登记父记录及其参数行；同一 id 重复登记时合并参数行
func (m *matcher) add(group string, id uint, params map[string]string) {
	set, ok := m.rows[id]
	if !ok {
		set = make(map[Param]struct{}, len(params))
		m.rows[id] = set

		ids := m.groups[group]
		i := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
		ids = append(ids, 0)
		copy(ids[i+1:], ids[i:])
		ids[i] = id
		m.groups[group] = ids
	}
	for k, v := range params {
		set[Param{Key: k, Value: v}] = struct{}{}
	}
}

// match 返回满足全部约束的第一条记录 ID
func (m *matcher) match(group string, constraints map[string]string) (uint, bool) {
	for _, id := range m.groups[group] {
		if m.satisfies(id, constraints) {
			return id, true
		}
	}
	return 0, false
}

// matchAll 返回满足全部约束的所有记录 ID（升序）
func (m *matcher) matchAll(group string, constraints map[string]string) []uint {
	var out []uint
	for _, id := range m.groups[group] {
		if m.satisfies(id, constraints) {
			out = append(out, id)
		}
	}
	return out
}

func (m *matcher) satisfies(id uint, constraints map[string]string) bool {
	set := m.rows[id]
	for k, v := range constraints {
		if _, ok := set[Param{Key: k, Value: v}]; !ok {
			return false
		}
	}
	return true
}

func (m *matcher) len() int {
	return len(m.rows)
}
