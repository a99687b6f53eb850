package agent

const extractorSystemPrompt = "You are a medical information extraction specialist."

const extractionPrompt = `Extract the patient information from the conversation below and return it as JSON.

Conversation:
%s

Information to extract:
- Name, age, gender
- Chief complaint
- Onset and duration of the symptoms
- Affected side (left/right/both)
- Severity and progression
- Additional symptoms (tinnitus, dizziness, ...)
- Past medical history

Return null for anything that was not mentioned.
Return only the JSON object with no other text.

Format:
{
    "name": "name",
    "age": 0,
    "gender": "gender",
    "chief_complaint": "chief complaint",
    "symptoms": ["symptom 1", "symptom 2"],
    "onset": "onset",
    "duration": "duration",
    "affected_side": "affected side",
    "severity": "severity",
    "additional_symptoms": ["additional symptom 1"],
    "medical_history": ["condition 1"],
    "progression": "progression"
}`
