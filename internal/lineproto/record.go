package lineproto

// Record is the finished line-protocol text for one entity
type Record struct {
	Entity  string `json:"entity"`
	Kind    string `json:"kind"`
	Payload string `json:"payload"`
	Lines   int    `json:"lines"`
}
