// backend.go - Registriert alle verfuegbaren Backends per Import
package backend

import (
	_ "github.com/priorml/priorformer/ml/backend/cpu"
)
