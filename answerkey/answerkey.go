package answerkey

import (
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"

	"github.com/lingowing/lingowing/models"
)

// State 答案面板状态
type State string

const (
	StateReady State = "ready"
	// StateWaiting 已在练习页，等待练习数据
	StateWaiting State = "waiting"
	// StateSearching 不在练习页，还没有数据
	StateSearching State = "searching"
)

const (
	gapMarker   = "[GAP]"
	gapToken    = "LINGOWINGGAPTOKEN"
	gapRendered = "___"

	dragPromptDefault = "Order the elements correctly"
	dragPrompt        = "Put the elements in the correct order"
)

// Gap 单个空位的全部可接受答案，Label 仅在多空位时出现
type Gap struct {
	Label   string   `json:"label,omitempty"`
	Answers []string `json:"answers"`
}

// Entry 单个题目的答案
type Entry struct {
	Number       int      `json:"number"`
	UUID         string   `json:"uuid,omitempty"`
	Type         string   `json:"type,omitempty"`
	Question     string   `json:"question,omitempty"`
	Answer       string   `json:"answer,omitempty"`
	Gaps         []Gap    `json:"gaps,omitempty"`
	DragElements []string `json:"drag_elements,omitempty"`
	Note         string   `json:"note,omitempty"`
}

// View 答案面板数据
type View struct {
	State        State   `json:"state"`
	Title        string  `json:"title,omitempty"`
	ActivityType string  `json:"activity_type,omitempty"`
	Entries      []Entry `json:"entries,omitempty"`
}

// Renderer 生成答案面板数据
type Renderer struct {
	converter *md.Converter
}

func NewRenderer() *Renderer {
	return &Renderer{converter: md.NewConverter("", true, nil)}
}

// Build 有数据时列出每题答案；没有数据时 pageState 为 "activity" 返回 waiting，否则 searching
func (r *Renderer) Build(set *models.ExerciseSet, pageState string) *View {
	if len(set.Items()) == 0 {
		if pageState == "activity" {
			return &View{State: StateWaiting}
		}
		return &View{State: StateSearching}
	}

	view := &View{
		State:        StateReady,
		Title:        set.Title,
		ActivityType: set.ActivityType,
		Entries:      make([]Entry, 0, len(set.Items())),
	}
	for idx := range set.Content.Items {
		view.Entries = append(view.Entries, r.entry(idx, &set.Content.Items[idx]))
	}
	return view
}

func (r *Renderer) entry(idx int, item *models.Item) Entry {
	e := Entry{
		Number: idx + 1,
		UUID:   item.UUID,
		Type:   string(item.Type),
	}

	if item.Type == models.ItemTypeDragAndDrop {
		e.Question = dragPromptDefault
		if item.Question != "" {
			e.Question = dragPrompt
		}
		answer, ok := item.CanonicalAnswer()
		if !ok {
			e.Note = "No correct order found"
			return e
		}
		e.Answer = answer
		e.DragElements = item.CandidateFragments()
		return e
	}

	e.Question = r.Question(item.Question)
	if answer, ok := item.CanonicalAnswer(); ok {
		e.Answer = answer
	}
	for g, group := range item.CorrectAnswers {
		if len(group) == 0 {
			continue
		}
		gap := Gap{Answers: group}
		if g > 0 {
			gap.Label = fmt.Sprintf("Gap %d", g+1)
		}
		e.Gaps = append(e.Gaps, gap)
	}
	if len(e.Gaps) == 0 {
		e.Note = "No correct answer found"
	}
	return e
}

// Question 将题目 HTML 转为 markdown，空位显示为 ___；转换失败时退回原文
func (r *Renderer) Question(html string) string {
	if html == "" {
		return ""
	}
	src := strings.ReplaceAll(html, gapMarker, gapToken)
	out, err := r.converter.ConvertString(src)
	if err != nil {
		out = src
	}
	return strings.TrimSpace(strings.ReplaceAll(out, gapToken, gapRendered))
}
