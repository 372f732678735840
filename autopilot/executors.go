package autopilot

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/lingowing/lingowing/matcher"
	"github.com/lingowing/lingowing/models"
	"github.com/lingowing/lingowing/pkg/logger"
)

// focusSettle 聚焦输入框到赋值之间的固定间隔
const focusSettle = 100 * time.Millisecond

// Executor 某一题型的作答器
//
// 返回 AttemptSubmitted 表示已点击验证，继续按钮交给页面观察者处理；
// 返回 AttemptCompleted 表示作答器自己点击了继续，控制器应接着处理下一题。
type Executor interface {
	Execute(ctx context.Context, run *Run) (models.AttemptOutcome, error)
}

// Run 一次作答的上下文
type Run struct {
	Variant Variant
	Item    *models.Item
	Index   int

	page     Page
	settings *Settings
	policy   matcher.Policy
	flow     *flow
	clicks   int
}

// Clicks 本次作答的点击次数
func (r *Run) Clicks() int {
	return r.clicks
}

func (r *Run) sleep(ctx context.Context, d time.Duration) error {
	return sleep(ctx, d)
}

func (r *Run) click(ctx context.Context, el Element) error {
	if err := el.Click(ctx); err != nil {
		return errors.Wrap(err, "click")
	}
	r.clicks++
	return nil
}

// find 查询单个必需元素
func (r *Run) find(ctx context.Context, selector string) (Element, error) {
	el, err := r.page.Query(ctx, selector)
	if err != nil {
		return nil, errors.Wrapf(err, "query %s", selector)
	}
	if el == nil {
		return nil, missingElement(selector)
	}
	return el, nil
}

// validate 等待 clickDelay 后点击验证按钮
func (r *Run) validate(ctx context.Context) error {
	if err := r.sleep(ctx, r.settings.Delays.Click()); err != nil {
		return err
	}
	btn, err := r.find(ctx, r.settings.Selectors.ValidateButton)
	if err != nil {
		return err
	}
	if err := r.click(ctx, btn); err != nil {
		return err
	}
	logger.Info(ctx, "Clicked validate button")
	r.flow.advance(StateAwaitingValidation)
	return nil
}

// proceed 验证后等待反馈，然后点击继续按钮
func (r *Run) proceed(ctx context.Context) error {
	if err := r.sleep(ctx, r.settings.Delays.Continue()); err != nil {
		return err
	}
	btn, err := r.find(ctx, r.settings.Selectors.ContinueButton)
	if err != nil {
		return err
	}
	if err := r.click(ctx, btn); err != nil {
		return err
	}
	logger.Info(ctx, "Clicked continue button")
	return nil
}

// clickSequence 依次点击，每次点击后等待 clickDelay
func (r *Run) clickSequence(ctx context.Context, elements []Element, texts []string, queue []int) error {
	for _, idx := range queue {
		if err := r.click(ctx, elements[idx]); err != nil {
			return err
		}
		logger.Info(ctx, "Clicked element: %s", texts[idx])
		if err := r.sleep(ctx, r.settings.Delays.Click()); err != nil {
			return err
		}
	}
	return nil
}

// DragAndDrop 按标准答案顺序点击拖拽片段
type DragAndDrop struct{}

func (DragAndDrop) Execute(ctx context.Context, run *Run) (models.AttemptOutcome, error) {
	canonical, ok := run.Item.CanonicalAnswer()
	if !ok {
		return models.AttemptAborted, errors.Wrap(ErrMissingData, "no canonical answer for drag-and-drop")
	}
	logger.Info(ctx, "Correct answer is %q", canonical)

	sel := run.settings.Selectors.DragElement
	elements, err := run.page.QueryAll(ctx, sel)
	if err != nil {
		return models.AttemptAborted, errors.Wrapf(err, "query %s", sel)
	}
	if len(elements) == 0 {
		return models.AttemptAborted, missingElement(sel)
	}
	texts := elementTexts(ctx, elements)

	var queue []int
	if fragments := run.Item.CandidateFragments(); len(fragments) > 0 {
		logger.Info(ctx, "Using backend answer options (%d fragments)", len(fragments))
		matches := matcher.Match(canonical, fragments)
		logger.Info(ctx, "Matched order: %q", matcher.Join(matches))
		if dropped := matcher.Dropped(fragments, matches); len(dropped) > 0 {
			logger.Warn(ctx, "Fragments not found in canonical answer: %v", dropped)
			if run.policy.Strict {
				return models.AttemptAborted, errors.Wrapf(ErrUnresolvedFragment, "no position for %v", dropped)
			}
		}
		var unresolved []string
		queue, unresolved = matcher.Resolve(matches, texts, run.policy)
		if len(unresolved) > 0 {
			logger.Warn(ctx, "Couldn't find elements for %v", unresolved)
			if run.policy.Strict {
				return models.AttemptAborted, errors.Wrapf(ErrUnresolvedFragment, "no element for %v", unresolved)
			}
		}
	} else {
		logger.Info(ctx, "Using UI-based element matching")
		queue = matcher.MatchElements(canonical, texts)
	}

	if err := run.clickSequence(ctx, elements, texts, queue); err != nil {
		return models.AttemptAborted, err
	}
	if err := run.validate(ctx); err != nil {
		return models.AttemptAborted, err
	}
	return models.AttemptSubmitted, nil
}

// MultipleChoice 点击与标准答案互为子串的选项
type MultipleChoice struct{}

func (MultipleChoice) Execute(ctx context.Context, run *Run) (models.AttemptOutcome, error) {
	sel := run.settings.Selectors.ChoiceOption
	options, err := run.page.QueryAll(ctx, sel)
	if err != nil {
		return models.AttemptAborted, errors.Wrapf(err, "query %s", sel)
	}
	if len(options) == 0 {
		return models.AttemptAborted, missingElement(sel)
	}
	texts := trimAll(elementTexts(ctx, options))

	idx := 0
	if answer, ok := run.Item.CanonicalAnswer(); ok {
		logger.Info(ctx, "Correct answer is %q", answer)
		idx = run.policy.ChooseOption(answer, texts)
		if idx < 0 {
			return models.AttemptAborted, errors.Wrapf(ErrUnresolvedFragment, "no option matches %q", answer)
		}
	} else if run.policy.Strict {
		return models.AttemptAborted, errors.Wrap(ErrMissingData, "no canonical answer for multiple choice")
	} else {
		logger.Warn(ctx, "Using first option as fallback")
	}

	if err := run.sleep(ctx, run.settings.Delays.Click()); err != nil {
		return models.AttemptAborted, err
	}
	if err := run.click(ctx, options[idx]); err != nil {
		return models.AttemptAborted, err
	}
	logger.Info(ctx, "Clicked option: %s", texts[idx])

	if err := run.validate(ctx); err != nil {
		return models.AttemptAborted, err
	}
	return models.AttemptSubmitted, nil
}

// TextInput 按输入框数量和空位数量选择单空或多空作答
type TextInput struct{}

func (TextInput) Execute(ctx context.Context, run *Run) (models.AttemptOutcome, error) {
	inputs, err := textInputs(ctx, run)
	if err != nil {
		return models.AttemptAborted, err
	}
	logger.Info(ctx, "Found %d input fields and %d correct answers", len(inputs), len(run.Item.CorrectAnswers))

	if len(inputs) > 1 && len(run.Item.CorrectAnswers) > 1 {
		return MultiTextInput{}.fill(ctx, run, inputs)
	}
	return SingleTextInput{}.fill(ctx, run, inputs)
}

func textInputs(ctx context.Context, run *Run) ([]Element, error) {
	if run.Item == nil || len(run.Item.CorrectAnswers) == 0 {
		return nil, errors.Wrap(ErrMissingData, "no correct answers for text input")
	}
	sel := run.settings.Selectors.TextInput
	inputs, err := run.page.QueryAll(ctx, sel)
	if err != nil {
		return nil, errors.Wrapf(err, "query %s", sel)
	}
	if len(inputs) == 0 {
		return nil, missingElement(sel)
	}
	return inputs, nil
}

// SingleTextInput 把第一个空位的标准答案写入第一个输入框
type SingleTextInput struct{}

func (s SingleTextInput) Execute(ctx context.Context, run *Run) (models.AttemptOutcome, error) {
	inputs, err := textInputs(ctx, run)
	if err != nil {
		return models.AttemptAborted, err
	}
	return s.fill(ctx, run, inputs)
}

func (SingleTextInput) fill(ctx context.Context, run *Run, inputs []Element) (models.AttemptOutcome, error) {
	answer, ok := run.Item.CanonicalAnswer()
	if !ok {
		return models.AttemptAborted, errors.Wrap(ErrMissingData, "no canonical answer for text input")
	}
	if err := inputs[0].SetValue(ctx, answer); err != nil {
		return models.AttemptAborted, errors.Wrap(err, "set value")
	}
	logger.Info(ctx, "Entered text: %s", answer)
	return finish(ctx, run)
}

// MultiTextInput 逐个填写多空输入框，缺少答案的空位跳过
type MultiTextInput struct{}

func (m MultiTextInput) Execute(ctx context.Context, run *Run) (models.AttemptOutcome, error) {
	inputs, err := textInputs(ctx, run)
	if err != nil {
		return models.AttemptAborted, err
	}
	return m.fill(ctx, run, inputs)
}

func (MultiTextInput) fill(ctx context.Context, run *Run, inputs []Element) (models.AttemptOutcome, error) {
	n := len(inputs)
	if len(run.Item.CorrectAnswers) < n {
		n = len(run.Item.CorrectAnswers)
	}
	click := run.settings.Delays.Click()

	for i := 0; i < n; i++ {
		answer, ok := run.Item.PrimaryAnswer(i)
		if !ok {
			logger.Warn(ctx, "No correct answer for input %d", i+1)
			if err := run.sleep(ctx, click/2); err != nil {
				return models.AttemptAborted, err
			}
			continue
		}
		if err := inputs[i].Focus(ctx); err != nil {
			return models.AttemptAborted, errors.Wrap(err, "focus")
		}
		if err := run.sleep(ctx, focusSettle); err != nil {
			return models.AttemptAborted, err
		}
		if err := inputs[i].SetValue(ctx, answer); err != nil {
			return models.AttemptAborted, errors.Wrap(err, "set value")
		}
		logger.Info(ctx, "Entered %q in input %d", answer, i+1)
		if err := run.sleep(ctx, click); err != nil {
			return models.AttemptAborted, err
		}
	}
	return finish(ctx, run)
}

// finish 填空题自己完成验证和继续
func finish(ctx context.Context, run *Run) (models.AttemptOutcome, error) {
	if err := run.validate(ctx); err != nil {
		return models.AttemptAborted, err
	}
	if err := run.proceed(ctx); err != nil {
		return models.AttemptAborted, err
	}
	return models.AttemptCompleted, nil
}

// DefaultExecutors 各题型的默认作答器
func DefaultExecutors() map[Variant]Executor {
	return map[Variant]Executor{
		VariantDragAndDrop:    DragAndDrop{},
		VariantMultipleChoice: MultipleChoice{},
		VariantTextInput:      TextInput{},
	}
}

// sleep 可被取消的等待
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
