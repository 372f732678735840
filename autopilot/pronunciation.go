package autopilot

import (
	"context"
	"strings"
	"sync"

	"github.com/lingowing/lingowing/pkg/logger"
)

// Pronunciation 发音练习：播放示范音频，点击录音，等待后点击继续，逐词推进。
// 拦截到 activityType 为 PRONUNCIATION 的练习时自动启用。
type Pronunciation struct {
	settings *PronunciationSettings

	mu       sync.Mutex
	page     Page
	active   bool
	busy     bool
	words    int
	lastWord string
	wg       sync.WaitGroup
}

func NewPronunciation(page Page, settings *PronunciationSettings) *Pronunciation {
	if settings == nil {
		settings = &DefaultSettings().Pronunciation
	}
	return &Pronunciation{page: page, settings: settings}
}

func (p *Pronunciation) SetPage(page Page) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.page = page
}

// Active 是否处于发音练习模式
func (p *Pronunciation) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Words 已完成的单词数
func (p *Pronunciation) Words() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.words
}

// LastWord 最近处理的单词
func (p *Pronunciation) LastWord() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastWord
}

// SetActive 开启时延迟 initialDelay 处理当前单词
func (p *Pronunciation) SetActive(ctx context.Context, active bool) {
	p.mu.Lock()
	changed := p.active != active
	p.active = active
	p.mu.Unlock()

	if !active {
		if changed {
			logger.Info(ctx, "Pronunciation handler disabled")
		}
		return
	}
	logger.Info(ctx, "Pronunciation handler enabled")
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if sleep(ctx, ms(p.settings.Delays.InitialMS)) != nil {
			return
		}
		p.ProcessWord(ctx)
	}()
}

// OnMutation 页面出现单词且空闲时处理
func (p *Pronunciation) OnMutation(ctx context.Context) {
	p.mu.Lock()
	active, busy, page := p.active, p.busy, p.page
	p.mu.Unlock()
	if !active || busy {
		return
	}
	el, err := page.Query(ctx, p.settings.Selectors.WordText)
	if err != nil || el == nil {
		return
	}
	p.ProcessWord(ctx)
}

// ProcessWord 开始处理当前单词，未启用或正在处理时返回 false
func (p *Pronunciation) ProcessWord(ctx context.Context) bool {
	p.mu.Lock()
	if !p.active || p.busy {
		p.mu.Unlock()
		return false
	}
	p.busy = true
	page := p.page
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		next := false
		defer func() {
			if r := recover(); r != nil {
				logger.Error(ctx, "Pronunciation step panicked: %v", r)
				next = false
			}
			p.mu.Lock()
			p.busy = false
			p.mu.Unlock()
			if next {
				p.ProcessWord(ctx)
			}
		}()
		next = p.run(ctx, page)
	}()
	return true
}

// run 处理一个单词，返回是否已点击继续
func (p *Pronunciation) run(ctx context.Context, page Page) bool {
	sel := p.settings.Selectors
	delays := p.settings.Delays

	wordEl, err := page.Query(ctx, sel.WordText)
	if err != nil || wordEl == nil {
		logger.Info(ctx, "No word found, skipping")
		return false
	}
	word, _ := wordEl.Text(ctx)
	word = strings.TrimSpace(word)
	logger.Info(ctx, "Processing word %q", word)

	if play, err := page.Query(ctx, sel.PlayButton); err == nil && play != nil {
		if err := play.Click(ctx); err == nil {
			logger.Info(ctx, "Played audio")
		}
	}
	if sleep(ctx, ms(delays.PlaybackMS)) != nil {
		return false
	}

	if rec, err := page.Query(ctx, sel.RecordButton); err == nil && rec != nil {
		if err := rec.Click(ctx); err != nil {
			logger.Warn(ctx, "Click record button failed: %v", err)
		} else {
			logger.Info(ctx, "Started recording")
			if sleep(ctx, ms(delays.RecordingMS)+ms(delays.AfterRecordMS)) != nil {
				return false
			}
		}
	}

	btn, err := page.Query(ctx, sel.ContinueButton)
	if err != nil || btn == nil {
		logger.Info(ctx, "No continue button found")
		return false
	}
	if err := btn.Click(ctx); err != nil {
		logger.Warn(ctx, "Click continue button failed: %v", err)
		return false
	}
	logger.Info(ctx, "Clicked continue")

	p.mu.Lock()
	p.words++
	p.lastWord = word
	p.mu.Unlock()

	return sleep(ctx, ms(delays.BetweenWordsMS)) == nil
}

// Wait 等待进行中的步骤结束
func (p *Pronunciation) Wait() {
	p.wg.Wait()
}
