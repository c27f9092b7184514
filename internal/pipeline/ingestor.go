// Package pipeline 定义了语料摄取的核心流程。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"rag-chatbot-go/internal/config"
	"rag-chatbot-go/internal/corpus"
	"rag-chatbot-go/internal/model"
	"rag-chatbot-go/internal/repository"
	"rag-chatbot-go/pkg/es"
	"rag-chatbot-go/pkg/log"
	"rag-chatbot-go/pkg/storage"
	"rag-chatbot-go/pkg/tasks"
)

// 同一 Upload 重复摄取时的记录 ID 冲突策略。
const (
	ConflictOverwrite      = "overwrite"
	ConflictAppendNewBatch = "append_new_batch"
	ConflictReject         = "reject"
)

// ErrDuplicateBatch 表示 reject 策略下检测到该上传已摄取过。
var ErrDuplicateBatch = errors.New("upload has already been ingested into the vendor collection")

// VectorStore 是摄取管道对向量集合的最小依赖面。
type VectorStore interface {
	EnsureCollection(ctx context.Context, vendorID string) (string, error)
	Upsert(ctx context.Context, collection string, records []es.Record) error
	Exists(ctx context.Context, collection, id string) (bool, error)
}

// Ingestor 封装了语料摄取的所有依赖和逻辑。
type Ingestor struct {
	store      VectorStore
	objects    storage.ObjectStore
	uploadRepo repository.UploadRepository
	jobRepo    repository.IngestionJobRepository
	ingestCfg  config.IngestConfig
}

// NewIngestor 创建一个新的 Ingestor 实例。
func NewIngestor(
	store VectorStore,
	objects storage.ObjectStore,
	uploadRepo repository.UploadRepository,
	jobRepo repository.IngestionJobRepository,
	ingestCfg config.IngestConfig,
) *Ingestor {
	return &Ingestor{
		store:      store,
		objects:    objects,
		uploadRepo: uploadRepo,
		jobRepo:    jobRepo,
		ingestCfg:  ingestCfg,
	}
}

// Process 是摄取任务的主函数，驱动任务与上传两条状态记录走完
// queued→started→{finished,failed} / pending→processing→{completed,failed}。
// 任意阶段的失败只在这里被捕获一次：写入两条状态记录后把原始错误
// 重新抛给任务队列，内部不做重试，已写入的部分记录不回滚。
func (p *Ingestor) Process(ctx context.Context, task tasks.IngestionTask) error {
	log.Infof("[Ingestor] 开始处理摄取任务, JobID: %d, UploadID: %d, VendorID: %d", task.JobID, task.UploadID, task.VendorID)

	job, err := p.jobRepo.FindByID(task.JobID)
	if err != nil {
		return fmt.Errorf("摄取任务记录不存在 (job_id=%d): %w", task.JobID, err)
	}
	upload, err := p.uploadRepo.FindByID(task.UploadID)
	if err != nil {
		return fmt.Errorf("语料上传记录不存在 (upload_id=%d): %w", task.UploadID, err)
	}

	if err := p.start(job, upload); err != nil {
		return err
	}

	count, err := p.run(ctx, job, upload)
	if err != nil {
		p.fail(job, upload, err)
		return err
	}

	if err := p.finish(job, upload); err != nil {
		return err
	}
	log.Infof("[Ingestor] 摄取任务完成, JobID: %d, 写入记录数: %d", job.ID, count)
	return nil
}

// run 执行摄取的各个阶段，返回写入集合的记录数。
func (p *Ingestor) run(ctx context.Context, job *model.IngestionJob, upload *model.CorpusUpload) (int, error) {
	// 1. 从对象存储取回语料文件
	log.Infof("[Ingestor] 步骤1: 取回语料文件, Object: %s", upload.ObjectName)
	obj, err := p.objects.Fetch(ctx, upload.ObjectName)
	if err != nil {
		return 0, fmt.Errorf("取回语料文件失败: %w", err)
	}
	defer obj.Close()

	// 2. 解析并校验表格
	log.Info("[Ingestor] 步骤2: 解析并校验 CSV")
	rows, err := corpus.Load(obj)
	if err != nil {
		return 0, err
	}
	log.Infof("[Ingestor] 步骤2: 校验通过, 共 %d 行问答对", len(rows))

	// 3. 幂等地确保租户集合存在
	vendorID := strconv.FormatUint(uint64(upload.VendorID), 10)
	log.Infof("[Ingestor] 步骤3: 确保租户集合存在, VendorID: %s", vendorID)
	collection, err := p.store.EnsureCollection(ctx, vendorID)
	if err != nil {
		return 0, err
	}

	if len(rows) == 0 {
		// 零数据行不是错误，任务照常完成
		return 0, nil
	}

	// 4. 按冲突策略生成记录 ID
	records, err := p.buildRecords(ctx, collection, vendorID, job, upload, rows)
	if err != nil {
		return 0, err
	}

	// 5. 批量向量化并写入集合
	log.Infof("[Ingestor] 步骤4: 写入 %d 条记录到集合 '%s'", len(records), collection)
	if err := p.store.Upsert(ctx, collection, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

// buildRecords 根据冲突策略为每行生成全局唯一的记录 ID。
func (p *Ingestor) buildRecords(ctx context.Context, collection, vendorID string, job *model.IngestionJob, upload *model.CorpusUpload, rows []corpus.Row) ([]es.Record, error) {
	policy := p.ingestCfg.OnConflict
	if policy == "" {
		policy = ConflictOverwrite
	}

	if policy == ConflictReject {
		// 以首行 ID 是否存在判定该上传是否已摄取过
		exists, err := p.store.Exists(ctx, collection, es.RecordID(vendorID, upload.ID, 0))
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, ErrDuplicateBatch
		}
	}

	records := make([]es.Record, 0, len(rows))
	for i, row := range rows {
		id := es.RecordID(vendorID, upload.ID, i)
		if policy == ConflictAppendNewBatch {
			// 按批次版本化 ID，重复摄取产生新记录而非覆盖
			id = fmt.Sprintf("%s_job%d", id, job.ID)
		}
		records = append(records, es.Record{
			ID:       id,
			VendorID: vendorID,
			UploadID: upload.ID,
			RowIndex: i,
			Question: row.Question,
			Answer:   row.Answer,
		})
	}
	return records, nil
}

// start 把任务推进到 started、上传推进到 processing，并记录开始时间。
func (p *Ingestor) start(job *model.IngestionJob, upload *model.CorpusUpload) error {
	now := time.Now()
	if err := advanceJob(job, model.JobStatusStarted); err != nil {
		return err
	}
	job.StartedAt = &now
	if err := p.jobRepo.Update(job); err != nil {
		return fmt.Errorf("更新摄取任务状态失败: %w", err)
	}

	if err := advanceUpload(upload, model.UploadStatusProcessing); err != nil {
		return err
	}
	if err := p.uploadRepo.Update(upload); err != nil {
		return fmt.Errorf("更新上传状态失败: %w", err)
	}
	return nil
}

// finish 把两条状态记录推进到各自的成功终态。
func (p *Ingestor) finish(job *model.IngestionJob, upload *model.CorpusUpload) error {
	now := time.Now()
	if err := advanceJob(job, model.JobStatusFinished); err != nil {
		return err
	}
	job.FinishedAt = &now
	if err := p.jobRepo.Update(job); err != nil {
		return fmt.Errorf("更新摄取任务状态失败: %w", err)
	}

	if err := advanceUpload(upload, model.UploadStatusCompleted); err != nil {
		return err
	}
	return p.uploadRepo.Update(upload)
}

// fail 是唯一的失败转移：在两条状态记录上写入同一错误信息和结束时间。
// 这里只记录，不吞错，调用方会把原始错误重新抛给任务队列。
func (p *Ingestor) fail(job *model.IngestionJob, upload *model.CorpusUpload, cause error) {
	now := time.Now()

	if err := advanceJob(job, model.JobStatusFailed); err != nil {
		log.Errorf("[Ingestor] 无法将任务置为失败态: %v", err)
	} else {
		job.FinishedAt = &now
		job.ErrorMessage = cause.Error()
		if err := p.jobRepo.Update(job); err != nil {
			log.Errorf("[Ingestor] 持久化任务失败态出错: %v", err)
		}
	}

	if err := advanceUpload(upload, model.UploadStatusFailed); err != nil {
		log.Errorf("[Ingestor] 无法将上传置为失败态: %v", err)
		return
	}
	upload.ErrorMessage = cause.Error()
	if err := p.uploadRepo.Update(upload); err != nil {
		log.Errorf("[Ingestor] 持久化上传失败态出错: %v", err)
	}
}

// advanceJob 是任务状态机的唯一转移入口。
func advanceJob(job *model.IngestionJob, to model.JobStatus) error {
	if !job.Status.CanTransition(to) {
		return fmt.Errorf("摄取任务状态不允许从 %s 转移到 %s (job_id=%d)", job.Status, to, job.ID)
	}
	job.Status = to
	return nil
}

// advanceUpload 是上传状态机的唯一转移入口。
func advanceUpload(upload *model.CorpusUpload, to model.UploadStatus) error {
	if !upload.Status.CanTransition(to) {
		return fmt.Errorf("上传状态不允许从 %s 转移到 %s (upload_id=%d)", upload.Status, to, upload.ID)
	}
	upload.Status = to
	return nil
}
