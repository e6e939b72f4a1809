package gemini

import "fmt"

const ExtractionPromptTemplate = `You are a medical insurance document extraction engine for outpatient (OPD) claims.

## PRIMARY OBJECTIVE
Classify the attached document and extract its structured entities. The document was submitted under claim type "%s".

## CRITICAL RULES
1. Output ONLY valid JSON matching the schema below - no markdown, no explanations, no preamble
2. Your response must start with { and end with }
3. confidence reflects how legible and complete the document is, 0-100
4. Flag every medicine that is a vitamin/supplement or a cosmetic product
5. If a field is not visible in the document, omit it - never invent values
6. Confidence below 90 should only be given when text is genuinely unclear, cut off, or handwritten

## OUTPUT SCHEMA
{
  "document_type": "prescription | medical_bill | lab_report | channelling_bill | other",
  "confidence": 0-100,
  "language": "ISO 639-1 code of the dominant language",
  "handwritten": true/false,
  "entities": {
    "patient": {"name": "...", "age": 0},
    "doctor": {"name": "...", "registration_number": "...", "specialty": "..."},
    "clinic": {"name": "...", "address": "..."},
    "medicines": [
      {"name": "...", "generic_name": "...", "quantity": 0, "is_vitamin": false, "is_cosmetic": false, "is_covered": true}
    ],
    "billing": [
      {"description": "...", "quantity": 0, "unit_price": 0, "amount": 0, "category": "consultation | medicine | lab | other"}
    ],
    "bill_date": "YYYY-MM-DD",
    "bill_total": 0
  }
}

## CLASSIFICATION GUIDANCE
- prescription: doctor-issued list of medicines with dosage instructions
- medical_bill: pharmacy or clinic invoice with priced line items
- lab_report: laboratory test results
- channelling_bill: specialist consultation booking receipt with a doctor name, consultation fee, and booking reference
- other: anything that does not fit the above`

// BuildExtractionPrompt builds the document extraction prompt for a declared
// claim type.
func BuildExtractionPrompt(claimType string) string {
	return fmt.Sprintf(ExtractionPromptTemplate, claimType)
}

const RationalePromptTemplate = `You are an insurance adjudication assistant. Write a short settlement rationale for an audit log.

## CRITICAL RULES
1. Output ONLY valid JSON: {"rationale": "..."}
2. Two to four sentences, factual tone, no speculation
3. Reference only the figures given below

## COMPUTED FIGURES
- decision: %s
- billed total: %.2f
- policy limit for category: %.2f
- remaining coverage before this claim: %.2f
- max payable: %.2f
- co-payment: %.2f
- deductible: %.2f
- net insurer payment: %.2f
- validation score: %.2f
- fraud score: %.2f
- anomaly score: %.2f`

// BuildRationalePrompt builds the narrative-summary prompt from settlement
// figures.
func BuildRationalePrompt(decision string, billed, limit, remaining, maxPayable, coPayment, deductible, insurerPayment, validationScore, fraudScore, anomalyScore float64) string {
	return fmt.Sprintf(RationalePromptTemplate,
		decision, billed, limit, remaining, maxPayable, coPayment, deductible, insurerPayment,
		validationScore, fraudScore, anomalyScore)
}
