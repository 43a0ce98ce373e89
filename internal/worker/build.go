package worker

import (
	"context"
	"strconv"

	"github.com/imkarma/ideaflow/internal/build"
	agentctx "github.com/imkarma/ideaflow/internal/context"
	"github.com/imkarma/ideaflow/internal/extract"
	"github.com/imkarma/ideaflow/internal/pipeline"
	"github.com/imkarma/ideaflow/internal/store"
)

const msgNoFiles = `No code files were found in the generated output.
Generate code using the format: