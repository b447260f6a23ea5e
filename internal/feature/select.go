package feature

// CandidateFeatures es el universo ordenado de features numéricas que el
// modelo puede consumir. La lista canónica de un modelo entrenado es la
// intersección de este orden con las columnas realmente presentes en la
// tabla de entrenamiento, y se persiste junto al modelo: en inferencia se
// reusa esa lista, nunca esta.
var CandidateFeatures = []string{
	ColGPASem1, ColGPASem2, ColGPASem3,
	ColGPADecline, ColGPASem2Decline, ColGPASem3Decline,
	ColAttendance, ColAttendanceCritical, ColAttendanceLow,
	ColLMSLogins, ColLMSVeryLow,
	ColFacilityAccess, ColLibraryVisits, ColCampusEngagement, ColCampusIsolated,
	ColAfterHoursSessions, ColAssignmentSubmissions, ColLowAssignments,
	ColBehavioralRiskScore,
}

// CanonicalList devuelve la lista canónica para una tabla de entrenamiento:
// los candidatos presentes en la tabla, en orden canónico.
func CanonicalList(f *Frame) []string {
	var names []string
	for _, c := range CandidateFeatures {
		if f.Has(c) {
			names = append(names, c)
		}
	}
	return names
}

// Select arma la matriz numérica restringida a la lista canónica dada, en ese
// orden exacto. Las columnas de la lista que falten en la tabla se rellenan
// con 0, el único default permitido; el orden y el conjunto de nombres nunca
// se alteran, para impedir el skew entre train y serve.
func Select(f *Frame, names []string) [][]float64 {
	n := f.Rows()
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, len(names))
	}
	for j, name := range names {
		col := f.Col(name)
		if col == nil {
			continue // still-missing column: stays zero-filled
		}
		for i := range col {
			matrix[i][j] = col[i]
		}
	}
	return matrix
}
