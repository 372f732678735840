package autopilot

import "time"

// Selectors 页面元素的 CSS 选择器，全部来自配置，算法中不写死
type Selectors struct {
	ValidateButton   string `json:"validate_button" toml:"validate_button"`
	ContinueButton   string `json:"continue_button" toml:"continue_button"`
	DragElement      string `json:"drag_element" toml:"drag_element"`
	ChoiceOption     string `json:"choice_option" toml:"choice_option"`
	DropZone         string `json:"drop_zone" toml:"drop_zone"` // 仅用于展示，逻辑中不使用
	CorrectIndicator string `json:"correct_indicator" toml:"correct_indicator"`
	TextInput        string `json:"text_input" toml:"text_input"`
	Progress         string `json:"progress" toml:"progress"`
}

// PronunciationSelectors 发音练习页面的选择器
type PronunciationSelectors struct {
	ContinueButton string `json:"continue_button" toml:"continue_button"`
	RecordButton   string `json:"record_button" toml:"record_button"`
	PlayButton     string `json:"play_button" toml:"play_button"`
	WordText       string `json:"word_text" toml:"word_text"`
	AudioPlayer    string `json:"audio_player" toml:"audio_player"`
}

// Delays 各步骤之间的等待时间（毫秒）
type Delays struct {
	InitialMS          int `json:"initial_ms" toml:"initial_ms"`                     // 收到数据后等待页面渲染
	BetweenQuestionsMS int `json:"between_questions_ms" toml:"between_questions_ms"` // 两题之间
	ClickMS            int `json:"click_ms" toml:"click_ms"`                         // 同一题内两次点击之间
	ContinueMS         int `json:"continue_ms" toml:"continue_ms"`                   // 点击继续之前
}

// PronunciationDelays 发音练习的等待时间（毫秒）
type PronunciationDelays struct {
	InitialMS      int `json:"initial_ms" toml:"initial_ms"`
	BetweenWordsMS int `json:"between_words_ms" toml:"between_words_ms"`
	PlaybackMS     int `json:"playback_ms" toml:"playback_ms"`         // 播放音频后等待
	RecordingMS    int `json:"recording_ms" toml:"recording_ms"`       // 模拟录音时长
	AfterRecordMS  int `json:"after_record_ms" toml:"after_record_ms"` // 录音结束到点击继续
}

// Settings 自动答题配置
type Settings struct {
	Delays         Delays    `json:"delays" toml:"delays"`
	Selectors      Selectors `json:"selectors" toml:"selectors"`
	StrictMatching bool      `json:"strict_matching" toml:"strict_matching"`
	// ObserverPollMS 页面变化轮询间隔
	ObserverPollMS int `json:"observer_poll_ms" toml:"observer_poll_ms"`

	Pronunciation PronunciationSettings `json:"pronunciation" toml:"pronunciation"`
}

// PronunciationSettings 发音练习配置
type PronunciationSettings struct {
	Delays    PronunciationDelays    `json:"delays" toml:"delays"`
	Selectors PronunciationSelectors `json:"selectors" toml:"selectors"`
}

// DefaultSettings 平台当前版本的选择器与节奏
func DefaultSettings() *Settings {
	return &Settings{
		Delays: Delays{
			InitialMS:          1500,
			BetweenQuestionsMS: 2000,
			ClickMS:            800,
			ContinueMS:         1500,
		},
		Selectors: Selectors{
			ValidateButton:   ".c-lfgsZH-ecAMBT-variant-primary",
			ContinueButton:   ".c-lfgsZH-kzaroK-variant-success",
			DragElement:      ".c-hHNqvo",
			ChoiceOption:     ".c-fvyLRe",
			DropZone:         ".c-RVkgL",
			CorrectIndicator: ".c-ddeRrD-dLCtaN-isCorrect-true",
			TextInput:        ".c-iJOJc",
			Progress:         ".c-PJLV-fZAZlL-size-14",
		},
		ObserverPollMS: 250,
		Pronunciation: PronunciationSettings{
			Delays: PronunciationDelays{
				InitialMS:      1500,
				BetweenWordsMS: 2000,
				PlaybackMS:     2000,
				RecordingMS:    2000,
				AfterRecordMS:  1500,
			},
			Selectors: PronunciationSelectors{
				ContinueButton: ".c-lfgsZH-ecAMBT-variant-primary",
				RecordButton:   ".c-lfgsZH-ecAMBT-variant-primary.c-IPDul",
				PlayButton:     `.plyr__control[data-plyr="play"]`,
				WordText:       ".c-PJLV-aZMMW-size-28",
				AudioPlayer:    ".plyr",
			},
		},
	}
}

func ms(v int) time.Duration {
	if v <= 0 {
		return 0
	}
	return time.Duration(v) * time.Millisecond
}

func (d Delays) Initial() time.Duration          { return ms(d.InitialMS) }
func (d Delays) BetweenQuestions() time.Duration { return ms(d.BetweenQuestionsMS) }
func (d Delays) Click() time.Duration            { return ms(d.ClickMS) }
func (d Delays) Continue() time.Duration         { return ms(d.ContinueMS) }

// ObserverPoll 轮询间隔，未配置时 250ms
func (s *Settings) ObserverPoll() time.Duration {
	if s.ObserverPollMS <= 0 {
		return 250 * time.Millisecond
	}
	return ms(s.ObserverPollMS)
}
