package node

import (
	"strings"
	"testing"

	wfmodel "bookforge-ai-api/internal/workflow/model"
)

// 模型输出常常在 JSON 前后夹杂说明性文字，
// 这里验证截取逻辑能拿到第一个完整 JSON 值。
func TestExtractJSONObject(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "纯对象", in: `{"a":1}`, want: `{"a":1}`},
		{name: "纯数组", in: `[1,2,3]`, want: `[1,2,3]`},
		{name: "前后夹杂文本", in: "以下是结果：\n```json\n{\"a\":1}\n```\n以上。", want: `{"a":1}`},
		{name: "数组夹杂文本", in: "结果如下 [\"x\",\"y\"] 完毕", want: `["x","y"]`},
		{name: "对象在数组之前", in: `{"a":[1]} tail`, want: `{"a":[1]}`},
		{name: "空输入", in: "   ", want: ""},
		{name: "无JSON时原样返回", in: "抱歉，我无法完成该请求。", want: "抱歉，我无法完成该请求。"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractJSONObject(tc.in)
			if got != tc.want {
				t.Fatalf("ExtractJSONObject(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestTruncateByRunes(t *testing.T) {
	if got := TruncateByRunes("你好世界", 2); got != "你好" {
		t.Fatalf("期望按 rune 截断为 %q, 实际 %q", "你好", got)
	}
	if got := TruncateByRunes("abc", 10); got != "abc" {
		t.Fatalf("长度不足时应原样返回, 实际 %q", got)
	}
	if got := TruncateByRunes("abc", 0); got != "" {
		t.Fatalf("maxRunes<=0 时应返回空串, 实际 %q", got)
	}
}

func TestBuildAnswersBlock(t *testing.T) {
	answers := []wfmodel.InterviewAnswer{
		{Question: "主角是谁？", Answer: "一名退休的钟表匠。"},
		{Question: "故事发生在哪里？", Answer: "   "},
		{Question: "冲突是什么？", Answer: "他必须修好停摆的城市大钟。"},
	}
	block := BuildAnswersBlock(answers)
	if !strings.Contains(block, "钟表匠") || !strings.Contains(block, "大钟") {
		t.Fatalf("素材块缺少已回答内容: %q", block)
	}
	if strings.Contains(block, "发生在哪里") {
		t.Fatalf("空回答的问题不应出现在素材块中: %q", block)
	}

	// 全部为空回答时不产出素材块。
	empty := BuildAnswersBlock([]wfmodel.InterviewAnswer{{Question: "q", Answer: ""}})
	if empty != "" {
		t.Fatalf("全空回答应返回空串, 实际 %q", empty)
	}
	if BuildAnswersBlock(nil) != "" {
		t.Fatal("nil 输入应返回空串")
	}
}
