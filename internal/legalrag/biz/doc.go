// Package biz 提供法律检索引擎的业务逻辑层。
//
// 该包采用分层架构，将业务逻辑拆分为以下组件：
//   - Analyzer: 查询分析（意图、法律概念、实体）
//   - Optimizer: 查询优化（同义词扩展、评分、检索策略）
//   - Retriever: 混合检索（向量 + 关键词加权融合）
//   - Reranker: 按意图与概念重排序
//   - Synthesizer: 上下文构建、LLM 答案生成与置信度评估
//   - CrossRefEngine: 跨文档引用发现
//   - Comparator: 多文档比较（相似度、差异、覆盖度）
//   - BatchOrchestrator: 有界并发的批量问答
//   - Service: 组合以上组件，提供统一的服务接口
package biz
