package llm

import (
	"fmt"
	"strings"
)

const (
	weeklySystemPrompt = "You are an experienced project manager."

	// noneText stands in for an empty section.
	noneText = "无"
)

// WeeklyInput is the material of one weekly report. Empty sections are
// rendered as 无.
type WeeklyInput struct {
	Today        string
	Period       string
	Completed    string
	Open         string
	PastSchedule string
	NextSchedule string
}

// BuildWeeklyMessages returns the system instruction and a single user
// message asking for a weekly report in four fixed parts.
func BuildWeeklyMessages(in WeeklyInput, persona string) []Message {
	persona = strings.TrimSpace(persona)
	role, constraint := "", "（返回格式中不使用表格、无需一级标题）"
	if persona != "" {
		role = fmt.Sprintf("，专门为%s人格类型撰写周报", persona)
		constraint = fmt.Sprintf("（但回复中无需提到%s属性；返回格式中不使用表格、无需一级标题）", persona)
	}

	var user strings.Builder
	fmt.Fprintf(&user, "你是一个专业的项目经理%s。\n", role)
	fmt.Fprintf(&user, "今天是%s。\n", in.Today)
	user.WriteString("请根据以下信息，为我撰写一份本周工作周报。\n")
	fmt.Fprintf(&user, "周报周期：%s\n", in.Period)
	user.WriteString(constraint + "\n")

	sections := []struct{ heading, body string }{
		{"本周完成任务：", in.Completed},
		{"本周未完成任务：", in.Open},
		{"本周行程记录：", in.PastSchedule},
		{"下周行程预览：", in.NextSchedule},
	}
	for _, s := range sections {
		body := strings.TrimSpace(s.body)
		if body == "" {
			body = noneText
		}
		fmt.Fprintf(&user, "\n%s\n%s\n", s.heading, body)
	}

	user.WriteString("\n请按以下结构输出：\n1. 本周工作总结\n2. 完成情况分析\n3. 下周工作计划\n4. 改进建议\n")
	user.WriteString("\n请直接输出内容，不要使用markdown代码块包裹。")

	return []Message{
		{Role: RoleSystem, Content: weeklySystemPrompt},
		{Role: RoleUser, Content: user.String()},
	}
}
