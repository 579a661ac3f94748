package utils

// Label 记录一次推荐里某个决定的来源，例如 recall_source=ann、
// rank_model=heuristic、embedding_fallback=query。
type Label struct {
	Value  string `json:"value"`
	Source string `json:"source"` // 写入的阶段：recall / rank / rerank
}

// MergeLabel 合并同一个 key 的两次写入，不丢弃先前的值：
// Value 用 '|' 连接，Source 用 ',' 连接，空值不参与连接。
func MergeLabel(existing Label, incoming Label) Label {
	if existing.Value == "" {
		return incoming
	}
	if incoming.Value == "" {
		return existing
	}
	return Label{
		Value:  join(existing.Value, incoming.Value, "|"),
		Source: join(existing.Source, incoming.Source, ","),
	}
}

func join(a, b, sep string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + sep + b
}
