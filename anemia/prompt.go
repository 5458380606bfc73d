package anemia

import (
	"fmt"
	"strings"
)

// promptHeader through promptFooter form the fixed clinical instruction
// block. The wording tracks the screening protocol: verify the photos are
// of a human patient, evaluate the five visual indicators against the WHO
// hemoglobin bands, and reply with a single JSON object and nothing else.
const promptHeader = `You are a medical AI assistant specialized in non-invasive anemia screening with expertise in Ayurvedic medicine.
You are analyzing 5 photos of a patient: face, tongue, lower eyelid (conjunctiva), palm/wrist, and fingernail beds.
`

const promptBody = `
**Your task:** Analyze visual indicators of anemia in these images and provide a screening assessment with both modern medical analysis and Ayurvedic (traditional Indian medicine) insights.
First, verify that the images are of a human patient (Face, Tongue, Eye, or Hand). If they are not (e.g., furniture, scenery, animals), yield an INVALID result.

**Clinical indicators to evaluate:**
1. **Face**: Overall skin pallor, facial color compared to normal healthy complexion
2. **Tongue**: Color intensity - healthy is bright red/pink, anemic is pale/whitish
3. **Conjunctiva (lower eyelid)**: Redness level - healthy is rich red, anemic is pale pink/white
4. **Palm**: Color of palm creases - healthy are visibly red/pink, anemic creases are pale
5. **Fingernail beds**: Press-and-release color return (capillary refill), overall nail bed pinkness

**WHO Anemia Classification (Hemoglobin levels):**
- Normal: >= 12.0 g/dL (women), >= 13.0 g/dL (men)
- Mild anemia: 11.0 - 11.9 g/dL
- Moderate anemia: 8.0 - 10.9 g/dL
- Severe anemia: < 8.0 g/dL

**Respond ONLY with valid JSON in this exact format:**
` + "```json" + `
{
  "hemoglobin_estimate": 11.5,
  "stage": "MILD",
  "confidence": 0.75,
  "explanation": "Overall assessment explaining the findings across ALL 5 images",
  "per_image_findings": {
    "face": "Description of facial pallor indicators",
    "tongue": "Description of tongue color findings",
    "conjunctiva": "Description of eyelid/conjunctiva findings",
    "palm": "Description of palm/wrist findings",
    "nails": "Description of nail bed findings"
  },
  "ayurvedic_insights": {
    "dosha_assessment": "Ayurvedic dosha imbalance assessment (Vata/Pitta/Kapha) based on visible signs",
    "dietary_recommendations": "Iron-rich foods and Ayurvedic dietary advice (e.g., beetroot, pomegranate, dates, amla, jaggery, green leafy vegetables, black sesame)",
    "herbal_remedies": "Recommended Ayurvedic herbs and formulations (e.g., Punarnava, Mandoor Bhasma, Loha Bhasma, Ashwagandha, Shatavari, Triphala)",
    "lifestyle_tips": "Ayurvedic lifestyle recommendations (pranayama, yoga asanas, daily routines)",
    "home_remedies": "Simple home remedies (e.g., soaked raisins, amla juice with honey, beetroot-carrot juice, moringa leaves)"
  }
}
` + "```" + `

**Important:**
- **CRITICAL:** If the images DO NOT contain human body parts (face, tongue, eye, hand) or are irrelevant (objects, scenes), SET "stage" to "INVALID".
- stage must be one of: NORMAL, MILD, MODERATE, SEVERE, INVALID
- hemoglobin_estimate must be a float between 5.0 and 18.0
- confidence must be a float between 0.0 and 1.0
- Be conservative in your estimates - when uncertain, lean toward recommending medical consultation
- Provide specific and actionable Ayurvedic recommendations based on the observed severity
- This is a screening tool only, always recommend professional medical followup
- If patient details are provided, factor in age, gender, ethnicity, diet, and medical history for more accurate assessment

Analyze the provided images now:`

// BuildPrompt renders the clinical instruction block, optionally enriched
// with a patient context section. It is deterministic and never touches
// the network.
func BuildPrompt(details *PatientDetails) string {
	var b strings.Builder
	b.WriteString(promptHeader)
	if details != nil {
		b.WriteString(buildPatientContext(details))
	}
	b.WriteString(promptBody)
	return b.String()
}

// buildPatientContext lists only the fields the patient actually filled
// in, plus guidance on how the details should shift the assessment.
func buildPatientContext(d *PatientDetails) string {
	var lines []string
	lines = append(lines, "", "**PATIENT INFORMATION (use this for more accurate analysis):**")

	if strings.TrimSpace(d.Name) != "" {
		lines = append(lines, fmt.Sprintf("- Name: %s", d.Name))
	}
	if d.Age > 0 {
		lines = append(lines, fmt.Sprintf("- Age: %d years", d.Age))
	}
	if strings.TrimSpace(d.Gender) != "" {
		lines = append(lines, fmt.Sprintf("- Gender: %s", d.Gender))
	}
	if strings.TrimSpace(d.Ethnicity) != "" {
		lines = append(lines, fmt.Sprintf("- Ethnicity: %s", d.Ethnicity))
	}
	if strings.TrimSpace(d.Region) != "" {
		lines = append(lines, fmt.Sprintf("- Region: %s", d.Region))
	}
	if d.Weight > 0 {
		lines = append(lines, fmt.Sprintf("- Weight: %g kg", d.Weight))
	}
	if strings.TrimSpace(d.DietType) != "" {
		lines = append(lines, fmt.Sprintf("- Diet: %s", d.DietType))
	}
	if strings.TrimSpace(d.KnownConditions) != "" {
		lines = append(lines, fmt.Sprintf("- Known Medical Conditions: %s", d.KnownConditions))
	}
	if strings.TrimSpace(d.CurrentSymptoms) != "" {
		lines = append(lines, fmt.Sprintf("- Current Symptoms: %s", d.CurrentSymptoms))
	}
	if d.Gender == "Female" && strings.TrimSpace(d.MenstrualHistory) != "" {
		lines = append(lines, fmt.Sprintf("- Menstrual Status: %s", d.MenstrualHistory))
	}
	if d.PreviousAnemia {
		lines = append(lines, "- Previous Anemia Diagnosis: Yes")
	}
	if strings.TrimSpace(d.CurrentMedications) != "" {
		lines = append(lines, fmt.Sprintf("- Current Medications: %s", d.CurrentMedications))
	}

	lines = append(lines,
		"",
		"**Consider the above patient details when:**",
		"- Adjusting hemoglobin thresholds (e.g., gender-specific WHO ranges)",
		"- Interpreting skin pallor relative to ethnicity and natural skin tone",
		"- Assessing dietary risk factors (vegetarian diets are higher risk for iron-deficiency)",
		"- Correlating visible signs with reported symptoms",
		"- Tailoring Ayurvedic recommendations to the patient's constitution and region",
		"",
	)

	return strings.Join(lines, "\n")
}
