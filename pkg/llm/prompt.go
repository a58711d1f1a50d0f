package llm

import (
	"fmt"
	"strings"
)

const (
	RoleSystem = "system"
	RoleUser   = "user"

	systemPrompt = "You are an expert time management assistant."
	taskHeading  = "以下是今天的任务列表："
)

// Message is one chat message sent to the generation service.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Instructions returns the fixed request text. A non-empty persona tailors
// the plan to that personality type without mentioning it in the reply.
func Instructions(persona string) string {
	persona = strings.TrimSpace(persona)
	if persona == "" {
		return "你是一个高效的时间管理专家。\n" +
			"请根据以下任务列表，为我制定今天的日程安排。并提供一些针对各项任务与一天具体的专业建议。" +
			"（返回格式中不使用表格）"
	}
	return fmt.Sprintf("你是一个高效的时间管理专家，专门为%s人格类型设计日程安排。\n", persona) +
		"请根据以下任务列表，为我制定今天的日程安排。并提供一些针对各项任务与一天具体的专业建议。" +
		fmt.Sprintf("（但回复中无需提到%s属性；返回格式中不使用表格）", persona)
}

// BuildMessages returns the system instruction and a single user message
// made of the schedule (when present), the instructions and the tasks, in
// that order.
func BuildMessages(tasks, schedule, persona string) []Message {
	var user strings.Builder
	if schedule != "" {
		user.WriteString(schedule)
		user.WriteString("\n\n")
	}
	user.WriteString(Instructions(persona))
	user.WriteString("\n\n")
	user.WriteString(taskHeading)
	user.WriteString("\n\n")
	user.WriteString(tasks)

	return []Message{
		{Role: RoleSystem, Content: systemPrompt},
		{Role: RoleUser, Content: user.String()},
	}
}
