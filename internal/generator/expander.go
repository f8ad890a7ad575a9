package generator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/annel0/customobjects/internal/customobject"
	"github.com/annel0/customobjects/internal/library"
	"github.com/annel0/customobjects/internal/logging"
	"github.com/annel0/customobjects/internal/metrics"
)

// Source выдаёт структуры по имени; *library.Library подходит
type Source interface {
	Get(ctx context.Context, name string) (*customobject.Holder, error)
}

// Options - лимиты раскрытия дерева структур
type Options struct {
	// MaxDepth - глубина ветвления; корень на глубине 0
	MaxDepth int
	// MaxStructures - предел размещённых структур, 0 без ограничения
	MaxStructures int
	Metrics       *metrics.Collector
	Logger        *logging.Logger
}

// Result - итог одного раскрытия
type Result struct {
	RunID        string
	Placed       []customobject.StructureCoordinate
	Missing      []string
	BlocksPlaced int
	// Unresolved - блоки без материала, пропущенные при размещении
	Unresolved int
	// Truncated - дерево обрезано по MaxDepth или MaxStructures
	Truncated bool
}

// Expander раскрывает дерево структур обходом в ширину
type Expander struct {
	source Source
	world  World
	opts   Options
}

func NewExpander(source Source, world World, opts Options) *Expander {
	if opts.Logger == nil {
		opts.Logger = logging.GetGeneratorLogger()
	}
	return &Expander{source: source, world: world, opts: opts}
}

type queued struct {
	coord customobject.StructureCoordinate
	depth int
}

// Expand размещает корневую структуру и всех выбранных потомков.
// Отсутствующая корневая структура - ошибка; отсутствующие потомки пропускаются.
func (e *Expander) Expand(ctx context.Context, root customobject.StructureCoordinate, rnd customobject.RandomSource) (*Result, error) {
	res := &Result{RunID: uuid.NewString()}
	logger := e.opts.Logger

	rootHolder, err := e.source.Get(ctx, root.Name)
	if err != nil {
		return nil, fmt.Errorf("generator: root %s: %w", root.Name, err)
	}

	queue := []queued{{coord: root, depth: 0}}
	holders := map[int]*customobject.Holder{0: rootHolder}

	for i := 0; i < len(queue); i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		item := queue[i]

		if e.opts.MaxStructures > 0 && len(res.Placed) >= e.opts.MaxStructures {
			res.Truncated = true
			break
		}

		h := holders[i]
		if h == nil {
			h, err = e.source.Get(ctx, item.coord.Name)
			if errors.Is(err, library.ErrStructureNotFound) {
				logger.Warn("[%s] структура %s не найдена, ветка пропущена", res.RunID, item.coord.Name)
				res.Missing = append(res.Missing, item.coord.Name)
				e.opts.Metrics.BranchEvaluated(metrics.ResultMissing)
				continue
			}
			if err != nil {
				return res, fmt.Errorf("generator: %s: %w", item.coord.Name, err)
			}
		}

		if err := e.place(h, item.coord, res); err != nil {
			return res, err
		}
		res.Placed = append(res.Placed, item.coord)

		for _, branch := range h.Branches() {
			child, ok := branch.Evaluate(item.coord.Position, item.coord.Rotation, rnd)
			if !ok {
				e.opts.Metrics.BranchEvaluated(metrics.ResultNone)
				continue
			}
			e.opts.Metrics.BranchEvaluated(metrics.ResultSelected)
			// обрезка только если ветка действительно сработала бы
			if item.depth >= e.opts.MaxDepth {
				res.Truncated = true
				continue
			}
			queue = append(queue, queued{coord: child, depth: item.depth + 1})
		}
	}

	e.opts.Metrics.ExpansionDone()
	logger.Info("[%s] %s: структур %d, блоков %d, пропущено %d", res.RunID, root.Name, len(res.Placed), res.BlocksPlaced, len(res.Missing))
	return res, nil
}

func (e *Expander) place(h *customobject.Holder, at customobject.StructureCoordinate, res *Result) error {
	placed := 0
	for _, b := range h.Blocks() {
		rotated := b.Rotate(at.Rotation)
		if !rotated.Resolved() {
			res.Unresolved++
			continue
		}
		pos := at.Position.Add(rotated.Offset())
		if err := e.world.SetMaterial(pos, rotated.Material()); err != nil {
			return fmt.Errorf("generator: %s at %s: %w", h.Name(), pos, err)
		}
		placed++
	}
	res.BlocksPlaced += placed
	e.opts.Metrics.BlocksPlaced(placed)
	return nil
}
