// Package router 将自然语言问题分类到一个封闭的路由枚举。
package router

import (
	"context"
	"math"
	"strings"
	"sync"

	"rag-chatbot-go/pkg/embedding"
	"rag-chatbot-go/pkg/log"
)

// RouteName 是路由分类的结果标签。
type RouteName string

const (
	// RouteFAQ 命中租户语料库检索。
	RouteFAQ RouteName = "faq"
	// RouteGenericResponse 走通用生成式回答，也是默认路由。
	RouteGenericResponse RouteName = "generic_response"
)

// Route 是一条带示例话术的路由定义。
type Route struct {
	Name       RouteName
	Utterances []string
}

// DefaultRoutes 返回内置的路由表。generic_response 不需要示例：
// 任何未命中阈值的问题都落到它。
func DefaultRoutes() []Route {
	return []Route{
		{
			Name: RouteFAQ,
			Utterances: []string{
				"What are your hours?",
				"When are you open?",
				"Do you ship internationally?",
				"What is your return policy?",
				"How can I track my order?",
				"Do you offer refunds?",
				"How do I contact support?",
				"What payment methods do you accept?",
			},
		},
	}
}

// Router 用钉死的 embedding 函数做语义分类。
// Route 是全函数：任何非空输入都返回枚举中的某个路由，绝不报错。
type Router struct {
	embedder  embedding.Client
	routes    []Route
	threshold float64

	mu         sync.Mutex
	utteranceV map[RouteName][][]float32 // 懒加载的示例话术向量
}

// New 创建一个 Router。threshold 非正数时取 0.75。
func New(embedder embedding.Client, routes []Route, threshold float64) *Router {
	if threshold <= 0 {
		threshold = 0.75
	}
	return &Router{
		embedder:  embedder,
		routes:    routes,
		threshold: threshold,
	}
}

// Route 将查询文本分类为一个路由名。
// 向量化失败时降级为关键词重叠匹配，仍然返回某个路由。
func (r *Router) Route(ctx context.Context, query string) RouteName {
	queryVec, err := r.embedder.CreateEmbedding(ctx, query)
	if err != nil {
		log.Warnf("[Router] 查询向量化失败，降级为关键词匹配: %v", err)
		return r.keywordRoute(query)
	}

	vectors, err := r.loadUtteranceVectors(ctx)
	if err != nil {
		log.Warnf("[Router] 示例话术向量化失败，降级为关键词匹配: %v", err)
		return r.keywordRoute(query)
	}

	best := RouteGenericResponse
	bestScore := r.threshold
	for _, route := range r.routes {
		for _, v := range vectors[route.Name] {
			if score := cosineSimilarity(queryVec, v); score >= bestScore {
				best = route.Name
				bestScore = score
			}
		}
	}
	return best
}

// loadUtteranceVectors 对路由表的示例话术做一次性向量化并缓存。
func (r *Router) loadUtteranceVectors(ctx context.Context) (map[RouteName][][]float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.utteranceV != nil {
		return r.utteranceV, nil
	}

	vectors := make(map[RouteName][][]float32, len(r.routes))
	for _, route := range r.routes {
		for _, u := range route.Utterances {
			v, err := r.embedder.CreateEmbedding(ctx, u)
			if err != nil {
				return nil, err
			}
			vectors[route.Name] = append(vectors[route.Name], v)
		}
	}
	r.utteranceV = vectors
	return vectors, nil
}

// keywordRoute 是向量不可用时的兜底：按词元重叠挑选最接近的路由。
func (r *Router) keywordRoute(query string) RouteName {
	queryTokens := tokenize(query)
	best := RouteGenericResponse
	bestOverlap := 0
	for _, route := range r.routes {
		for _, u := range route.Utterances {
			overlap := overlapCount(queryTokens, tokenize(u))
			if overlap > bestOverlap {
				best = route.Name
				bestOverlap = overlap
			}
		}
	}
	// 单词重叠不足以判定意图
	if bestOverlap < 2 {
		return RouteGenericResponse
	}
	return best
}

func tokenize(s string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,!?;:\"'")
		if len(w) > 2 {
			tokens[w] = struct{}{}
		}
	}
	return tokens
}

func overlapCount(a, b map[string]struct{}) int {
	n := 0
	for w := range a {
		if _, ok := b[w]; ok {
			n++
		}
	}
	return n
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
