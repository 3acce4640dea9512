package client

// ClinicalNote is the reference text shown alongside a prediction.
type ClinicalNote struct {
	About          string `json:"about"`
	Signs          string `json:"signs"`
	ModelInsights  string `json:"model_insights"`
	VisualPatterns string `json:"visual_patterns"`
}

var clinicalNotes = map[string]ClinicalNote{
	"Normal": {
		About: "Healthy pulmonary anatomy: clear lung fields, distinct heart and diaphragm borders, " +
			"and no pathological opacities or structural abnormalities. Used as the baseline for abnormal studies.",
		Signs: "Clear, symmetrical lung fields; sharp costophrenic and cardiophrenic angles; " +
			"distinct cardiac and diaphragmatic silhouettes; normal vascular markings.",
		ModelInsights: "The classifier relies on edge and symmetry cues to recognise the absence of anomalies, " +
			"focusing on high-contrast borders and evenly distributed texture.",
		VisualPatterns: "Uniform grayscale texture, no abnormal density, clear margins, no asymmetry between lung zones.",
	},
	"Viral Pneumonia": {
		About: "A viral infection of the lung that inflames and damages the alveoli. Early films can look subtle; " +
			"later ones show diffuse or focal opacities, mostly in the lower zones, often bilateral with ground-glass change.",
		Signs: "Patchy or diffuse opacities, especially in the lower lobes; bilateral infiltrates; " +
			"air bronchograms; ground-glass patterns.",
		ModelInsights: "The classifier picks up texture anomalies and irregular opacities across the lung fields, " +
			"including faint ground-glass regions.",
		VisualPatterns: "Hazy non-homogeneous opacities, reticular patterns, bilateral cloud-like textures.",
	},
	"Lung_Opacity": {
		About: "Covers findings typical of chronic infection such as tuberculosis, which favours the upper lobes " +
			"and can cause cavitation and fibrosis. Opacities may overlap with malignancy or other chronic disease.",
		Signs: "Upper-lobe predominant opacities, cavitary lesions, fibrotic bands, volume loss, " +
			"calcified granulomas, nodular patterns.",
		ModelInsights: "The classifier responds to cavitation edges, calcifications and fibrotic textures, " +
			"isolating region-specific abnormalities.",
		VisualPatterns: "Dense upper-lobe opacities, thick-walled cavities, linear fibrotic streaks, speckled nodules.",
	},
}

// NoteFor returns the clinical note for a predicted class name.
func NoteFor(class string) (ClinicalNote, bool) {
	note, ok := clinicalNotes[class]
	return note, ok
}
