package reason

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/semlink/rdf"
)

var (
	provActivity       = rdf.NewIRI(rdf.PROVActivity)
	provStartedAtTime  = rdf.NewIRI(rdf.PROVStartedAtTime)
	provWasGeneratedBy = rdf.NewIRI(rdf.PROVWasGeneratedBy)
	rdfType            = rdf.NewIRI(rdf.RDFType)
)

// WrapWithProv annotates patch in place with a single prov:Activity started
// now and links every subject of the patch to it. It returns patch.
func WrapWithProv(patch *rdf.Graph) *rdf.Graph {
	return wrapWithProvAt(patch, time.Now())
}

func wrapWithProvAt(patch *rdf.Graph, now time.Time) *rdf.Graph {
	subjects := patch.AllSubjects()

	act := rdf.NewBlank("activity" + strings.ReplaceAll(uuid.NewString(), "-", ""))
	patch.AddSPO(act, rdfType, provActivity)
	patch.AddSPO(act, provStartedAtTime,
		rdf.NewTypedLiteral(now.UTC().Format("2006-01-02T15:04:05.999999-07:00"), rdf.XSDDateTime))

	for _, s := range subjects {
		patch.AddSPO(s, provWasGeneratedBy, act)
	}
	return patch
}
