// Package agents turns user intents into prompts and model output into
// structured results.
//
// Each agent renders an embedded prompt, calls an llm.Client and extracts
// what it needs from the reply. Article streams; the others wait for the
// complete reply. Topic-generating agents run hotter than the configured
// temperature to get more varied lists.
package agents

import (
	"context"
	"embed"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/randalmurphal/llmbinge/pkg/llmbinge/extract"
	"github.com/randalmurphal/llmbinge/pkg/llmbinge/llm"
	"github.com/randalmurphal/llmbinge/pkg/llmbinge/template"
)

const (
	// HighTemperature is used by the topic list agents.
	HighTemperature = 1.2

	// MapTopicCount is the number of trailing list items kept from map replies.
	MapTopicCount = 20

	// FallbackTopic is returned by RandomTopic when the reply holds no list.
	FallbackTopic = "Quantum Entanglement"
)

//go:embed prompts/*.md
var promptFS embed.FS

var prompts = mustLoadPrompts()

func mustLoadPrompts() *template.Set {
	set, err := template.LoadSet(promptFS, "prompts")
	if err != nil {
		panic(fmt.Sprintf("agents: load prompts: %v", err))
	}
	return set
}

// randIntN picks a random index; replaced in tests.
var randIntN = rand.IntN

// ArticleInput describes an article to write.
type ArticleInput struct {
	Topic  string
	Aspect string
}

// TopicsResult is the output of the list-producing agents.
type TopicsResult struct {
	Raw    string
	Topics []string
}

// RandomTopicResult is the output of RandomTopic.
type RandomTopicResult struct {
	Raw   string
	Topic string
}

// LayoutResult is the output of MapLayout.
type LayoutResult struct {
	Raw    string
	Layout extract.MapLayout
}

// ArticleMessages builds the prompt for an article. A non-empty aspect
// narrows the article to that aspect of the topic.
func ArticleMessages(in ArticleInput) ([]llm.Message, error) {
	var aspectInstruction string
	if in.Aspect != "" {
		aspectInstruction = fmt.Sprintf("Focus specifically on the aspect: **%s** as it relates to %q.", in.Aspect, in.Topic)
	}
	return system("article", map[string]any{
		"topic":             in.Topic,
		"aspectInstruction": aspectInstruction,
	})
}

// Article streams an article through cb. It blocks until the stream ends.
func Article(ctx context.Context, client llm.Client, cfg llm.Config, in ArticleInput, cb llm.Callbacks) error {
	messages, err := ArticleMessages(in)
	if err != nil {
		return err
	}
	client.Stream(ctx, cfg, messages, cb)
	return nil
}

// Aspects lists focused aspects of topic, excluding the existing ones.
func Aspects(ctx context.Context, client llm.Client, cfg llm.Config, topic string, existing []string) (TopicsResult, error) {
	raw, err := complete(ctx, client, cfg, "aspects", map[string]any{
		"topic":           topic,
		"existingAspects": existing,
	})
	if err != nil {
		return TopicsResult{}, err
	}
	return TopicsResult{Raw: raw, Topics: extract.NumberedItems(raw)}, nil
}

// TopicSuggestions lists topics related to topic. starters hint at the
// reader's interests.
func TopicSuggestions(ctx context.Context, client llm.Client, cfg llm.Config, topic string, starters []string) (TopicsResult, error) {
	raw, err := complete(ctx, client, cfg, "topic_suggestions", map[string]any{
		"topic":         topic,
		"starterTopics": starters,
	})
	if err != nil {
		return TopicsResult{}, err
	}
	return TopicsResult{Raw: raw, Topics: extract.NumberedItems(raw)}, nil
}

// RandomTopic asks for a list of topics and picks one at random, or
// FallbackTopic when the reply holds no list.
func RandomTopic(ctx context.Context, client llm.Client, cfg llm.Config) (RandomTopicResult, error) {
	raw, err := complete(ctx, client, cfg.WithTemperature(HighTemperature), "random_topic", nil)
	if err != nil {
		return RandomTopicResult{}, err
	}
	topics := extract.Topics(raw, MapTopicCount)
	if len(topics) == 0 {
		return RandomTopicResult{Raw: raw, Topic: FallbackTopic}, nil
	}
	return RandomTopicResult{Raw: raw, Topic: topics[randIntN(len(topics))]}, nil
}

// MapTopics lists the topics for a new map centred on topic.
func MapTopics(ctx context.Context, client llm.Client, cfg llm.Config, topic string) (TopicsResult, error) {
	raw, err := complete(ctx, client, cfg.WithTemperature(HighTemperature), "map_topics", map[string]any{
		"topic": topic,
	})
	if err != nil {
		return TopicsResult{}, err
	}
	return TopicsResult{Raw: raw, Topics: extract.Topics(raw, MapTopicCount)}, nil
}

// MapExpansion lists new topics around topic that are not among surrounding.
func MapExpansion(ctx context.Context, client llm.Client, cfg llm.Config, topic string, surrounding []string) (TopicsResult, error) {
	raw, err := complete(ctx, client, cfg.WithTemperature(HighTemperature), "map_expansion", map[string]any{
		"topic":             topic,
		"surroundingTopics": surrounding,
	})
	if err != nil {
		return TopicsResult{}, err
	}
	return TopicsResult{Raw: raw, Topics: extract.Topics(raw, MapTopicCount)}, nil
}

// MapLayout groups and places topics. The reply must contain a layout
// object; anything else yields a *errors.ParseError.
func MapLayout(ctx context.Context, client llm.Client, cfg llm.Config, topics []string) (LayoutResult, error) {
	raw, err := complete(ctx, client, cfg, "map_layout", map[string]any{
		"topics": NumberedList(topics),
	})
	if err != nil {
		return LayoutResult{}, err
	}
	layout, err := extract.Layout(raw)
	if err != nil {
		return LayoutResult{Raw: raw}, err
	}
	return LayoutResult{Raw: raw, Layout: layout}, nil
}

// NumberedList renders items as "1. a\n2. b".
func NumberedList(items []string) string {
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(item)
	}
	return b.String()
}

func system(name string, vars map[string]any) ([]llm.Message, error) {
	text, err := prompts.Render(name, vars)
	if err != nil {
		return nil, fmt.Errorf("render %s prompt: %w", name, err)
	}
	return []llm.Message{llm.System(text)}, nil
}

func complete(ctx context.Context, client llm.Client, cfg llm.Config, name string, vars map[string]any) (string, error) {
	messages, err := system(name, vars)
	if err != nil {
		return "", err
	}
	return llm.Complete(ctx, client, cfg, messages)
}
