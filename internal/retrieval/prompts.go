package retrieval

const groundingSystemPrompt = `You are a medical knowledge assistant specialising in hearing loss.
Answer accurately and professionally using only the reference literature below.
Write clearly; when a medical term is necessary, add a short plain-language explanation.

Reference literature:
%s`

const (
	symptomsAnalysisQuery      = "List the hearing-disorder types, likely causes and related conditions associated with the following symptoms: %s"
	diseaseInfoQuery           = "Explain %s, including its symptoms, causes, diagnostic methods and treatment."
	differentialQuestionsQuery = "What key questions should be asked of the patient to differentiate between the following conditions: %s"
)
